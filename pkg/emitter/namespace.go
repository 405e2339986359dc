package emitter

import "strings"

// Namespace is the stack of enclosing object names at some point in a
// recursive constructor emission. The empty Namespace is the top level.
type Namespace []string

// Child returns a new Namespace with name pushed onto the stack.
func (ns Namespace) Child(name string) Namespace {
	out := make(Namespace, len(ns), len(ns)+1)
	copy(out, ns)
	return append(out, name)
}

// Mangle produces the local variable name for name as seen from ns: at the
// top level (empty Namespace) the name is used unchanged; otherwise it is
// prefixed with every enclosing segment joined by "_".
func (ns Namespace) Mangle(name string) string {
	if len(ns) == 0 {
		return name
	}
	return strings.Join(ns, "_") + "_" + name
}

// JSONPath produces the ambient-data indexing expression for name as seen
// from ns, e.g. Namespace{"timer_node"}.JSONPath("value") ->
// `["timer_node"]["value"]`.
func (ns Namespace) JSONPath(name string) string {
	var b strings.Builder
	for _, seg := range ns {
		b.WriteString("[\"")
		b.WriteString(seg)
		b.WriteString("\"]")
	}
	b.WriteString("[\"")
	b.WriteString(name)
	b.WriteString("\"]")
	return b.String()
}
