// Package facade implements the Service Facade: coarse operations over the
// Project Store, Type Catalogue, Compiler Driver and Process Supervisor.
// Each call into a component takes that component's own lock and releases
// it before returning, so this package never holds two component locks at
// once and no two requests can deadlock against each other through it. The
// store's lock is not held while the catalogue is consulted. Operations
// that use both (CreateProject, UpdateFlow) consult the Project Store
// first. Process log buffers are locked only inside internal/supervisor.
package facade

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/flowforge/flowd/internal/compiler"
	"github.com/flowforge/flowd/internal/config"
	"github.com/flowforge/flowd/internal/store"
	"github.com/flowforge/flowd/internal/supervisor"
	"github.com/flowforge/flowd/pkg/catalog"
	"github.com/flowforge/flowd/pkg/emitter"
	"github.com/flowforge/flowd/pkg/flow"
)

// Facade wires together the five components behind the HTTP surface.
type Facade struct {
	cfg        *config.Config
	catalogue  *catalog.Catalogue
	store      *store.Store
	compiler   *compiler.Driver
	supervisor *supervisor.Supervisor
	emitter    *emitter.Emitter
}

// New wires a Facade from its components.
func New(cfg *config.Config, cat *catalog.Catalogue, st *store.Store, cd *compiler.Driver, sup *supervisor.Supervisor) *Facade {
	return &Facade{
		cfg:        cfg,
		catalogue:  cat,
		store:      st,
		compiler:   cd,
		supervisor: sup,
		emitter:    emitter.New(cat),
	}
}

// ListPackages returns every package in the catalogue.
func (f *Facade) ListPackages() []*flow.Package {
	return f.catalogue.ListPackages()
}

// GetPackage returns one catalogued package.
func (f *Facade) GetPackage(name string) (*flow.Package, bool) {
	return f.catalogue.GetPackage(name)
}

// AddPackage registers a package in the catalogue.
func (f *Facade) AddPackage(pkg *flow.Package) error {
	return f.catalogue.AddPackage(pkg)
}

// ListProjects returns every project on disk.
func (f *Facade) ListProjects() ([]*flow.Project, error) {
	return f.store.List()
}

// GetProject returns one project by name.
func (f *Facade) GetProject(name string) (*flow.Project, bool) {
	return f.store.Get(name)
}

// CreateProject materializes a new project directory, running the Code
// Emitter over the initial graph so the project's entry source reflects its
// starting flow from the moment it's created, not a stub. Idempotent:
// calling this twice with the same name returns the existing stored project
// both times.
func (f *Facade) CreateProject(name, version string, packages []flow.PackageRef, graph *flow.Graph) (*flow.Project, error) {
	if existing, ok := f.store.Get(name); ok {
		return existing, nil
	}
	if graph == nil {
		graph = &flow.Graph{Nodes: map[string]*flow.Node{}}
	}
	source, err := f.emitter.Emit(graph)
	if err != nil {
		return nil, fmt.Errorf("facade: emitting initial source for %q: %w", name, err)
	}
	return f.store.Create(name, version, packages, graph, source)
}

// DeleteProject removes a project's directory tree.
func (f *Facade) DeleteProject(name string) error {
	return f.store.Delete(name)
}

// UpdateFlow rewrites a project's flow graph, validating every node type
// and constructor against the Type Catalogue before persisting — the
// Project Store is consulted first (to confirm the project exists), then
// the Type Catalogue (to validate the graph), matching this package's
// store-before-catalogue lock ordering.
func (f *Facade) UpdateFlow(name string, graph *flow.Graph) (*flow.Project, error) {
	if _, ok := f.store.Get(name); !ok {
		return nil, fmt.Errorf("facade: project %q not found", name)
	}
	if err := f.validateGraph(graph); err != nil {
		return nil, fmt.Errorf("facade: invalid flow graph: %w", err)
	}
	return f.store.UpdateFlow(name, graph)
}

func (f *Facade) validateGraph(graph *flow.Graph) error {
	for id, node := range graph.Nodes {
		t, ok := f.catalogue.GetType(node.NodeType)
		if !ok {
			return fmt.Errorf("node %q: unknown type %q", id, node.NodeType)
		}
		if _, ok := t.Constructors[node.Constructor]; !ok {
			return fmt.Errorf("node %q: unknown constructor %q on type %q", id, node.Constructor, node.NodeType)
		}
	}
	return nil
}

// CompileProject emits the project's graph to source, writes it into the
// project's entry source file, then invokes the Compiler Driver.
func (f *Facade) CompileProject(ctx context.Context, name string, kind compiler.BuildKind) (*compiler.Result, error) {
	project, ok := f.store.Get(name)
	if !ok {
		return nil, fmt.Errorf("facade: project %q not found", name)
	}
	source, err := f.emitter.Emit(project.Flow)
	if err != nil {
		return nil, fmt.Errorf("facade: emitting source for %q: %w", name, err)
	}
	dir := filepath.Join(f.cfg.ProjectsDir(), name)
	if err := writeEntrySource(dir, source); err != nil {
		return nil, fmt.Errorf("facade: writing entry source for %q: %w", name, err)
	}
	return f.compiler.Compile(ctx, dir, kind)
}

// LastCompile returns the modification time of the project's build
// artifact for kind, as formatted by the Compiler Driver.
func (f *Facade) LastCompile(name string, kind compiler.BuildKind) (string, bool) {
	dir := filepath.Join(f.cfg.ProjectsDir(), name)
	return f.compiler.LastCompile(dir, name, kind)
}

// RunProject spawns the project's compiled artifact under the Process
// Supervisor. For a native build this locates the shared library under
// target/{debug,release} and hands it to the configured runner binary; for
// a web build it starts a static file server rooted at the wasm bundle.
func (f *Facade) RunProject(ctx context.Context, name string, kind compiler.BuildKind, staticAddr string) (supervisor.ProcessID, error) {
	dir := filepath.Join(f.cfg.ProjectsDir(), name)
	if kind == compiler.BuildWeb {
		return f.supervisor.SpawnStaticServer(ctx, f.cfg.Runner.StaticServerPath, filepath.Join(dir, "pkg"), staticAddr)
	}
	profileDir := filepath.Join(dir, "target", f.cfg.BuildProfile())
	return f.supervisor.SpawnRunner(ctx, f.cfg.RunnerBinary(), profileDir, name)
}

// StopProcess stops a running supervised process.
func (f *Facade) StopProcess(id supervisor.ProcessID) error {
	return f.supervisor.Stop(id)
}

// ProcessLogs returns a supervised process's buffered output.
func (f *Facade) ProcessLogs(id supervisor.ProcessID) ([]string, error) {
	return f.supervisor.GetLogs(id)
}

func writeEntrySource(projectDir, source string) error {
	return store.WriteFile(filepath.Join(projectDir, "src", "main.rs"), []byte(source))
}
