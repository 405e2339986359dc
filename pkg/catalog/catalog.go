// Package catalog implements the Type Catalogue: a mutex-guarded registry
// of loaded packages with qualified-name type resolution, including the
// reserved "built-in" pseudo-package that backs bare scalar identifiers.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flowforge/flowd/pkg/flow"
)

// builtInPackageName and builtInCrateName name the reserved pseudo-package
// that resolves bare type identifiers like "i32" or "String" without
// requiring a caller to add a package for them first. Grounded on
// package_manager.rs's synthetic "built-in" package / "primitives" crate.
const (
	builtInPackageName = "built-in"
	builtInCrateName    = "primitives"
)

// Catalogue is a mutex-guarded registry of Packages, addressed by
// qualified name ("crate[::module...]::Type" or a bare identifier that
// resolves against the built-in package).
type Catalogue struct {
	mu       sync.RWMutex
	packages map[string]*flow.Package
}

// New returns an empty Catalogue pre-seeded with the built-in package.
func New() *Catalogue {
	c := &Catalogue{packages: make(map[string]*flow.Package)}
	c.packages[builtInPackageName] = builtInPackage()
	return c
}

// AddPackage registers pkg under its own name. Re-adding a package with a
// name already registered is a no-op (idempotent on name alone, first
// registration wins) regardless of version.
func (c *Catalogue) AddPackage(pkg *flow.Package) error {
	if pkg == nil || pkg.Name == "" {
		return fmt.Errorf("catalog: package must have a name")
	}
	if pkg.Name == builtInPackageName {
		return fmt.Errorf("catalog: %q is a reserved package name", builtInPackageName)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.packages[pkg.Name]; ok {
		return nil
	}
	c.packages[pkg.Name] = pkg
	return nil
}

// LoadDir registers every package found in dir: one JSON-encoded flow.Package
// per file. A file that fails to parse is skipped with its error collected
// rather than aborting the rest of the load, mirroring internal/store's
// LoadAll tolerance for one bad entry.
func (c *Catalogue) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: reading packages dir: %w", err)
	}

	var warnings []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		var pkg flow.Package
		if err := json.Unmarshal(data, &pkg); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		if err := c.AddPackage(&pkg); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", entry.Name(), err))
		}
	}
	return warnings, nil
}

// GetPackage returns the package registered under name, if any.
func (c *Catalogue) GetPackage(name string) (*flow.Package, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pkg, ok := c.packages[name]
	return pkg, ok
}

// ListPackages returns every registered package, including the built-in
// pseudo-package, in no particular order.
func (c *Catalogue) ListPackages() []*flow.Package {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*flow.Package, 0, len(c.packages))
	for _, pkg := range c.packages {
		out = append(out, pkg)
	}
	return out
}

// GetType resolves a qualified type name to its Type definition.
//
// A bare identifier (no "::" separators) resolves against the built-in
// package's primitives crate. A qualified name never names its own package:
// "crate::Type" or "crate::module[::module...]::Type" is resolved by
// trying seg0 as a crate name in turn against every registered package
// (including built-in), walking the intervening segments as nested module
// names, and returning the first match. Cross-package ambiguity — two
// packages declaring a crate with the same name — is undefined; map
// iteration order already makes that underspecified.
func (c *Catalogue) GetType(qualifiedName string) (*flow.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	parts := strings.Split(qualifiedName, "::")
	if len(parts) == 1 {
		return lookupInCrate(c.packages[builtInPackageName].Crates[builtInCrateName], parts[0])
	}

	crateName := parts[0]
	modSegs := parts[1 : len(parts)-1]
	typeName := parts[len(parts)-1]

	for _, pkg := range c.packages {
		crate, ok := pkg.Crates[crateName]
		if !ok {
			continue
		}
		if len(modSegs) == 0 {
			if t, ok := lookupInCrate(crate, typeName); ok {
				return t, true
			}
			continue
		}
		mods := crate.Modules
		var mod *flow.Module
		found := true
		for _, seg := range modSegs {
			m, ok := mods[seg]
			if !ok {
				found = false
				break
			}
			mod = m
			mods = m.Modules
		}
		if !found {
			continue
		}
		if t, ok := lookupInModule(mod, typeName); ok {
			return t, true
		}
	}
	return nil, false
}

func lookupInCrate(crate *flow.Crate, name string) (*flow.Type, bool) {
	if crate == nil {
		return nil, false
	}
	t, ok := crate.Types[name]
	return t, ok
}

func lookupInModule(mod *flow.Module, name string) (*flow.Type, bool) {
	if mod == nil {
		return nil, false
	}
	t, ok := mod.Types[name]
	return t, ok
}

// builtInPackage constructs the reserved built-in/primitives package.
// Every prelude type here carries both a FromDefault and a Json
// constructor, so a literal value for any scalar can be supplied either
// way in a project's flow graph.
func builtInPackage() *flow.Package {
	prelude := map[string]*flow.Type{}
	for _, name := range []string{"i32", "i64", "u32", "u64", "f32", "f64", "bool", "String", "()"} {
		prelude[name] = &flow.Type{
			Constructors: map[string]*flow.Constructor{
				"default": {Kind: flow.ConstructorFromDefault},
				"json":    {Kind: flow.ConstructorFromJson},
			},
		}
	}
	return &flow.Package{
		Name:    builtInPackageName,
		Version: "0.0.0",
		Crates: map[string]*flow.Crate{
			builtInCrateName: {Types: prelude},
		},
	}
}
