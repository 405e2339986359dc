// Package emitter implements the Code Emitter: it walks a flow Graph and,
// guided by the Type Catalogue, recursively emits Rust constructor-call
// source text for every node, wires connections, assembles the graph, and
// wraps the whole thing in the fixed ABI entry points the compiled runner
// expects.
package emitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/flowforge/flowd/pkg/catalog"
	"github.com/flowforge/flowd/pkg/flow"
)

// objectDescription is the small bundle of facts every constructor-emission
// recipe needs about the value it is building, matching the
// {name, type_name, type_parameter_part, mutable} shape confirmed against
// flow_model.rs.
type objectDescription struct {
	Name              string
	TypeName          string
	TypeParameterPart string
	Mutable           bool
}

// Emitter emits Rust source for a Graph against a Catalogue.
type Emitter struct {
	cat *catalog.Catalogue
}

// New returns an Emitter resolving node and constructor types against cat.
func New(cat *catalog.Catalogue) *Emitter {
	return &Emitter{cat: cat}
}

// Emit produces the full Rust source document for graph: standard imports,
// the ABI entry points, and the body built by emitBody.
func (e *Emitter) Emit(graph *flow.Graph) (string, error) {
	var body strings.Builder
	if err := e.emitBody(&body, graph); err != nil {
		return "", err
	}
	var out strings.Builder
	out.WriteString(stdUses)
	out.WriteString("\nfn build_context() -> ExecutionContext {\n")
	out.WriteString(indent(body.String(), "    "))
	out.WriteString("}\n\n")
	out.WriteString(abiFunctions)
	return out.String(), nil
}

const stdUses = `use std::sync::{Arc, Mutex};
use flowrs::connection::connect;
use flowrs::flow::Flow;
use flowrs::node::NodeDescription;
use flowrs::execution::context::ExecutionContext;
use flowrs::execution::standard::StandardExecutor;
use flowrs::sched::observer::StandardChangeObserver;
`

const abiFunctions = `#[no_mangle]
pub extern "C" fn native_init() -> *mut ExecutionContext {
    let ctx = build_context();
    Box::into_raw(Box::new(ctx))
}

#[no_mangle]
pub extern "C" fn native_run(ctx: *mut ExecutionContext) {
    let ctx = unsafe { &mut *ctx };
    ctx.run();
}

#[no_mangle]
pub extern "C" fn native_cancel(ctx: *mut ExecutionContext) {
    let ctx = unsafe { &mut *ctx };
    ctx.cancel();
}

#[no_mangle]
pub extern "C" fn native_free_string(s: *mut std::os::raw::c_char) {
    unsafe {
        if !s.is_null() {
            drop(std::ffi::CString::from_raw(s));
        }
    }
}

#[cfg(target_arch = "wasm32")]
pub fn wasm_run() {
    let mut ctx = build_context();
    ctx.run();
}
`

// emitBody writes the ambient locals, one construction per node, every
// connection, graph assembly, and the final context-returning expression,
// in that fixed order.
func (e *Emitter) emitBody(w *strings.Builder, graph *flow.Graph) error {
	if err := e.emitAmbientLocals(w, graph); err != nil {
		return err
	}

	nodeIDs := make([]string, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		nodeIDs = append(nodeIDs, id)
	}

	for _, id := range nodeIDs {
		if err := e.emitNode(w, id, graph.Nodes[id]); err != nil {
			return fmt.Errorf("emitter: node %q: %w", id, err)
		}
	}

	for _, conn := range graph.Connections {
		fmt.Fprintf(w, "connect(%s.%s, %s.%s.clone());\n",
			conn.FromNode, conn.FromOutput, conn.ToNode, conn.ToInput)
	}

	w.WriteString("let mut flow = Flow::new_empty();\n")
	var id uint64
	for _, nodeID := range nodeIDs {
		node := graph.Nodes[nodeID]
		fmt.Fprintf(w, "flow.add_node_with_id_and_desc(%s, %d, NodeDescription { name: %q.into(), description: %q.into(), kind: %q.into() });\n",
			nodeID, id, nodeID, nodeID+": "+node.NodeType, node.NodeType)
		id++
	}

	w.WriteString("let executor = StandardExecutor::new(co);\n")
	w.WriteString("ExecutionContext::new(executor, flow)\n")
	return nil
}

// emitAmbientLocals emits the four ambient bindings every constructor
// recipe may reference by unmangled name: the change observer pair, the
// shared context, and the parsed ambient JSON data value.
func (e *Emitter) emitAmbientLocals(w *strings.Builder, graph *flow.Graph) error {
	data := graph.Data
	if data == nil {
		data = json.RawMessage("{}")
	}
	encoded, err := json.Marshal(string(data))
	if err != nil {
		return fmt.Errorf("emitter: encoding ambient data: %w", err)
	}
	w.WriteString("let co = StandardChangeObserver::new();\n")
	w.WriteString("let change_observer = Arc::new(Mutex::new(co.clone()));\n")
	w.WriteString("let context = Arc::new(Mutex::new(ExecutionContext::empty()));\n")
	fmt.Fprintf(w, "let data_str = %s;\n", string(encoded))
	w.WriteString("let data: serde_json::Value = serde_json::from_str(data_str).expect(\"Failed to parse flow data.\");\n")
	return nil
}

// emitNode emits one top-level node's constructor call under the empty
// namespace.
func (e *Emitter) emitNode(w *strings.Builder, nodeID string, node *flow.Node) error {
	t, ok := e.cat.GetType(node.NodeType)
	if !ok {
		return fmt.Errorf("unknown type %q", node.NodeType)
	}
	ctor, ok := t.Constructors[node.Constructor]
	if !ok {
		return fmt.Errorf("unknown constructor %q on type %q", node.Constructor, node.NodeType)
	}
	tpPart, err := typeParamPartFromCatalogType(t, node.TypeParameters, e.cat)
	if err != nil {
		return err
	}
	obj := objectDescription{Name: nodeID, TypeName: node.NodeType, TypeParameterPart: tpPart}
	return e.emitConstructor(w, obj, Namespace{}, ctor, node.TypeParameters)
}

// emitConstructor recursively emits obj's construction into w. ns is the
// namespace obj's name is mangled against; mapping is the enclosing node's
// type-parameter symbol table, threaded unchanged through the whole
// recursive emission of one node.
func (e *Emitter) emitConstructor(w *strings.Builder, obj objectDescription, ns Namespace, ctor *flow.Constructor, mapping map[string]string) error {
	switch ctor.Kind {
	case flow.ConstructorNew, flow.ConstructorNewWithObserver, flow.ConstructorNewWithObserverAndContext, flow.ConstructorNewWithArbitraryArgs:
		return e.emitNewVariant(w, obj, ns, ctor, mapping)
	case flow.ConstructorFromJson:
		return e.emitFromJson(w, obj, ns)
	case flow.ConstructorFromDefault:
		return e.emitFromDefault(w, obj, ns)
	case flow.ConstructorFromCode:
		return e.emitFromCode(w, obj, ns, ctor, mapping)
	default:
		return fmt.Errorf("unknown constructor kind %q", ctor.Kind)
	}
}

func (e *Emitter) emitNewVariant(w *strings.Builder, obj objectDescription, ns Namespace, ctor *flow.Constructor, mapping map[string]string) error {
	args := syntheticArguments(ctor)
	newNS := ns.Child(obj.Name)

	rendered := make([]string, 0, len(args))
	for _, arg := range args {
		switch arg.Construction.Kind {
		case flow.ConstructionConstructor:
			resolvedName, err := resolveRefName(arg.Type, mapping)
			if err != nil {
				return fmt.Errorf("argument %q: %w", arg.Name, err)
			}
			subType, ok := e.cat.GetType(resolvedName)
			if !ok {
				return fmt.Errorf("argument %q: unknown type %q", arg.Name, resolvedName)
			}
			subCtor, ok := subType.Constructors[arg.Construction.ConstructorName]
			if !ok {
				return fmt.Errorf("argument %q: unknown constructor %q on %q", arg.Name, arg.Construction.ConstructorName, resolvedName)
			}
			tpPart, err := typeParamPartFromRef(arg.Type, mapping)
			if err != nil {
				return fmt.Errorf("argument %q: %w", arg.Name, err)
			}
			subObj := objectDescription{Name: arg.Name, TypeName: resolvedName, TypeParameterPart: tpPart}
			if err := e.emitConstructor(w, subObj, newNS, subCtor, mapping); err != nil {
				return err
			}
			rendered = append(rendered, wrapPassing(arg.Passing, newNS.Mangle(arg.Name)))
		case flow.ConstructionExistingObject:
			rendered = append(rendered, wrapPassing(arg.Passing, arg.Name))
		default:
			return fmt.Errorf("argument %q: unknown construction kind %q", arg.Name, arg.Construction.Kind)
		}
	}

	funcName := ctor.FunctionName
	if funcName == "" {
		funcName = "new"
	}
	callPath := obj.TypeName + "::" + funcName
	if obj.TypeParameterPart != "" {
		callPath = obj.TypeName + "::" + obj.TypeParameterPart + "::" + funcName
	}
	mut := ""
	if obj.Mutable {
		mut = "mut "
	}
	fmt.Fprintf(w, "let %s%s = %s(%s);\n", mut, ns.Mangle(obj.Name), callPath, strings.Join(rendered, ", "))
	return nil
}

func (e *Emitter) emitFromJson(w *strings.Builder, obj objectDescription, ns Namespace) error {
	typeAnn := obj.TypeName
	if obj.TypeParameterPart != "" {
		typeAnn += obj.TypeParameterPart
	}
	fmt.Fprintf(w, "let %s: %s = serde_json::from_value(data%s.clone()).expect(\"Failed to parse JSON data for %s.\");\n",
		ns.Mangle(obj.Name), typeAnn, ns.JSONPath(obj.Name), obj.Name)
	return nil
}

func (e *Emitter) emitFromDefault(w *strings.Builder, obj objectDescription, ns Namespace) error {
	typeAnn := obj.TypeName
	if obj.TypeParameterPart != "" {
		typeAnn += obj.TypeParameterPart
	}
	fmt.Fprintf(w, "let %s: %s = Default::default();\n", ns.Mangle(obj.Name), typeAnn)
	return nil
}

// fromCodeTemplateContext builds the FromCode template placeholder set: the
// fixed object-description fields plus one "type_parameter_<sym>" entry per
// generic symbol resolved in the enclosing node's type-parameter mapping,
// per spec.md's placeholder list.
func fromCodeTemplateContext(obj objectDescription, ns Namespace, mapping map[string]string) map[string]interface{} {
	ctx := map[string]interface{}{
		"fully_qualified_name": ns.Mangle(obj.Name),
		"type_name":            obj.TypeName,
		"type_parameter_part":  obj.TypeParameterPart,
		"mutable":              obj.Mutable,
	}
	for sym, resolved := range mapping {
		ctx["type_parameter_"+sym] = resolved
	}
	return ctx
}

func (e *Emitter) emitFromCode(w *strings.Builder, obj objectDescription, ns Namespace, ctor *flow.Constructor, mapping map[string]string) error {
	tmpl, err := template.New("from_code").Parse(ctor.Template)
	if err != nil {
		return fmt.Errorf("from_code template for %q: %w", obj.Name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, fromCodeTemplateContext(obj, ns, mapping)); err != nil {
		return fmt.Errorf("rendering from_code template for %q: %w", obj.Name, err)
	}
	w.Write(buf.Bytes())
	if buf.Len() == 0 || buf.Bytes()[buf.Len()-1] != '\n' {
		w.WriteString("\n")
	}
	return nil
}

// syntheticArguments returns ctor's effective argument list: the New*
// variants other than NewWithArbitraryArgs synthesize their arguments from
// the fixed ambient locals rather than taking an authored list.
func syntheticArguments(ctor *flow.Constructor) []flow.Argument {
	switch ctor.Kind {
	case flow.ConstructorNew:
		return nil
	case flow.ConstructorNewWithObserver:
		return []flow.Argument{existingObjectArg("change_observer")}
	case flow.ConstructorNewWithObserverAndContext:
		return []flow.Argument{existingObjectArg("change_observer"), existingObjectArg("context")}
	case flow.ConstructorNewWithArbitraryArgs:
		return ctor.Arguments
	default:
		return nil
	}
}

func existingObjectArg(name string) flow.Argument {
	return flow.Argument{
		Name:         name,
		Passing:      flow.PassingClone,
		Construction: flow.Construction{Kind: flow.ConstructionExistingObject},
	}
}

// wrapPassing applies ident's passing-mode prefix/suffix.
func wrapPassing(mode flow.PassingMode, ident string) string {
	switch mode {
	case flow.PassingClone:
		return ident + ".clone()"
	case flow.PassingReference:
		return "&" + ident
	case flow.PassingMutableReference:
		return "&mut " + ident
	case flow.PassingMove:
		fallthrough
	default:
		return ident
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}
