// Package flow defines the data model for flow projects: the package/type
// catalogue shape, the dataflow graph shape, and the on-disk project
// envelope that wraps them.
package flow

import "encoding/json"

// Package is an immutable, versioned collection of crates once loaded into
// a catalogue.
type Package struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Crates  map[string]*Crate `json:"crates"`
}

// Crate is a top-level compilation unit within a Package. Crates do not
// nest; their Modules do.
type Crate struct {
	Types   map[string]*Type   `json:"types,omitempty"`
	Modules map[string]*Module `json:"modules,omitempty"`
}

// Module is a nestable namespace inside a Crate.
type Module struct {
	Types   map[string]*Type   `json:"types,omitempty"`
	Modules map[string]*Module `json:"modules,omitempty"`
}

// Type describes one constructible value: its ports, its declared type
// parameter symbols (in declaration order), and the named recipes that can
// build it.
type Type struct {
	Inputs         map[string]*PortSpec     `json:"inputs,omitempty"`
	Outputs        map[string]*PortSpec     `json:"outputs,omitempty"`
	TypeParameters []string                 `json:"type_parameters,omitempty"`
	Constructors   map[string]*Constructor  `json:"constructors"`
}

// PortSpec describes the type carried by one input or output port.
type PortSpec struct {
	Type TypeRef `json:"type"`
}

// TypeRefKind discriminates the two TypeRef variants.
type TypeRefKind string

const (
	// TypeRefConcrete names a type directly, e.g. "i32" or "pkg::crate::Foo".
	TypeRefConcrete TypeRefKind = "concrete"
	// TypeRefGeneric names a type-parameter symbol declared on the enclosing
	// Type or resolved through a Node's type_parameters mapping.
	TypeRefGeneric TypeRefKind = "generic"
)

// TypeRef is a tagged union: either a Concrete reference to a fully
// qualified type name, or a Generic reference to a type-parameter symbol.
// Either variant may itself carry an ordered sequence of nested TypeRefs,
// e.g. "SelectedTimer<U>" is {Kind: Concrete, Name: "SelectedTimer",
// TypeParameters: [{Kind: Generic, Name: "U"}]}.
type TypeRef struct {
	Kind           TypeRefKind `json:"kind"`
	Name           string      `json:"name"`
	TypeParameters []TypeRef   `json:"type_parameters,omitempty"`
}

// IsGeneric reports whether this ref is a Generic variant.
func (t TypeRef) IsGeneric() bool { return t.Kind == TypeRefGeneric }

// ConstructorKind discriminates the seven Constructor variants.
type ConstructorKind string

const (
	ConstructorNew                       ConstructorKind = "new"
	ConstructorNewWithObserver           ConstructorKind = "new_with_observer"
	ConstructorNewWithObserverAndContext ConstructorKind = "new_with_observer_and_context"
	ConstructorNewWithArbitraryArgs      ConstructorKind = "new_with_arbitrary_args"
	ConstructorFromJson                  ConstructorKind = "from_json"
	ConstructorFromDefault                ConstructorKind = "from_default"
	ConstructorFromCode                  ConstructorKind = "from_code"
)

// Constructor is a tagged union of recipes for emitting constructor-call
// source for a value of the owning Type.
type Constructor struct {
	Kind ConstructorKind `json:"kind"`

	// FunctionName is used by the New* variants; defaults to "new" when empty.
	FunctionName string `json:"function_name,omitempty"`

	// Arguments is used by NewWithArbitraryArgs.
	Arguments []Argument `json:"arguments,omitempty"`

	// Template is used by FromCode.
	Template string `json:"template,omitempty"`
}

// PassingMode describes how an argument value is passed into a constructor
// call.
type PassingMode string

const (
	PassingMove             PassingMode = "move"
	PassingClone            PassingMode = "clone"
	PassingReference        PassingMode = "reference"
	PassingMutableReference PassingMode = "mutable_reference"
)

// ConstructionKind discriminates how an Argument's value comes into being.
type ConstructionKind string

const (
	// ConstructionConstructor means the argument must be recursively
	// constructed via the named Constructor on its resolved type.
	ConstructionConstructor ConstructionKind = "constructor"
	// ConstructionExistingObject means the argument refers to an ambient
	// value (one of the four locals, or another ExistingObject name
	// threaded in by the caller) and is emitted verbatim, unmangled.
	ConstructionExistingObject ConstructionKind = "existing_object"
)

// Construction is a tagged union: either build this argument recursively
// via a named constructor, or bind it to an ambient value by name.
type Construction struct {
	Kind            ConstructionKind `json:"kind"`
	ConstructorName string           `json:"constructor_name,omitempty"`
}

// Argument is one parameter of a NewWithArbitraryArgs constructor call.
type Argument struct {
	Name         string       `json:"name"`
	Type         TypeRef      `json:"type"`
	Passing      PassingMode  `json:"passing"`
	Construction Construction `json:"construction"`
}

// Node is one instantiated value in a Graph.
type Node struct {
	NodeType       string            `json:"node_type"`
	TypeParameters map[string]string `json:"type_parameters,omitempty"`
	Constructor    string            `json:"constructor"`
}

// Connection wires one node's output port to another node's input port.
type Connection struct {
	FromNode   string `json:"from_node"`
	FromOutput string `json:"from_output"`
	ToNode     string `json:"to_node"`
	ToInput    string `json:"to_input"`
}

// Graph is the user-authored dataflow description.
type Graph struct {
	Nodes       map[string]*Node `json:"nodes"`
	Connections []Connection     `json:"connections,omitempty"`
	Data        json.RawMessage  `json:"data,omitempty"`
}

// PackageRef names a dependency of a Project: a package name/version plus
// exactly one of a local path or a git remote (optionally pinned to a
// branch).
type PackageRef struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Path    *string `json:"path,omitempty"`
	Git     *string `json:"git,omitempty"`
	Branch  *string `json:"branch,omitempty"`
}

// Project is the full description of one materialized flow project.
type Project struct {
	Name     string       `json:"name"`
	Version  string       `json:"version"`
	Packages []PackageRef `json:"packages,omitempty"`
	Flow     *Graph       `json:"flow"`
}

// Clone returns a deep copy of the graph, safe for a caller to mutate
// independently of the stored original.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		Nodes: make(map[string]*Node, len(g.Nodes)),
	}
	for id, n := range g.Nodes {
		cp := *n
		cp.TypeParameters = make(map[string]string, len(n.TypeParameters))
		for k, v := range n.TypeParameters {
			cp.TypeParameters[k] = v
		}
		out.Nodes[id] = &cp
	}
	out.Connections = append([]Connection(nil), g.Connections...)
	if g.Data != nil {
		out.Data = append(json.RawMessage(nil), g.Data...)
	}
	return out
}
