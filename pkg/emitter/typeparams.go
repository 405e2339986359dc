package emitter

import (
	"fmt"
	"strings"

	"github.com/flowforge/flowd/pkg/catalog"
	"github.com/flowforge/flowd/pkg/flow"
)

// resolveRefName resolves ref against mapping: a Concrete ref's name is
// already final; a Generic ref's name is a symbol that must be present in
// mapping.
func resolveRefName(ref flow.TypeRef, mapping map[string]string) (string, error) {
	if !ref.IsGeneric() {
		return ref.Name, nil
	}
	name, ok := mapping[ref.Name]
	if !ok {
		return "", fmt.Errorf("emitter: unresolved type-parameter symbol %q", ref.Name)
	}
	return name, nil
}

// typeParamPartFromCatalogType computes the "<T1,T2,...>" suffix for a
// node-level object, by walking t's own declared TypeParameters (symbol
// names) and resolving each through mapping, recursing into each resolved
// type's own declared TypeParameters using the same mapping throughout.
// Returns "" when t declares no type parameters.
func typeParamPartFromCatalogType(t *flow.Type, mapping map[string]string, cat *catalog.Catalogue) (string, error) {
	if len(t.TypeParameters) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("<")
	for _, sym := range t.TypeParameters {
		resolved, ok := mapping[sym]
		if !ok {
			return "", fmt.Errorf("emitter: type-parameter symbol %q has no entry in node type_parameters", sym)
		}
		b.WriteString(resolved)
		b.WriteString(",")
		resolvedType, ok := cat.GetType(resolved)
		if ok && len(resolvedType.TypeParameters) > 0 {
			nested, err := typeParamPartFromCatalogType(resolvedType, mapping, cat)
			if err != nil {
				return "", err
			}
			b.WriteString(nested)
		}
	}
	b.WriteString(">")
	return b.String(), nil
}

// typeParamPartFromRef computes the "<T1,T2,...>" suffix for an argument,
// by walking the argument's own TypeRef.TypeParameters tree as authored in
// the constructor definition, substituting every Generic leaf through
// mapping. Returns "" when ref carries no nested type parameters.
func typeParamPartFromRef(ref flow.TypeRef, mapping map[string]string) (string, error) {
	if len(ref.TypeParameters) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("<")
	for _, sub := range ref.TypeParameters {
		name, err := resolveRefName(sub, mapping)
		if err != nil {
			return "", err
		}
		b.WriteString(name)
		b.WriteString(",")
		nested, err := typeParamPartFromRef(sub, mapping)
		if err != nil {
			return "", err
		}
		b.WriteString(nested)
	}
	b.WriteString(">")
	return b.String(), nil
}
