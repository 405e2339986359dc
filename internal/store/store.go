// Package store implements the Project Store: a disk-backed registry of
// flow projects, each materialized as a small Cargo-shaped directory tree,
// guarded by a single mutex and persisted atomically on every mutation.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/flowforge/flowd/internal/logger"
	"github.com/flowforge/flowd/pkg/flow"
)

const (
	projectFileName  = "flow-project.json"
	manifestFileName = "Cargo.toml"
	entrySourcePath  = "src/main.rs"
	indexHTMLName    = "index.html"
)

// Store is the mutex-guarded, disk-backed registry of flow projects.
type Store struct {
	mu          sync.Mutex
	projectsDir string
	builtinDeps []string
}

// New returns a Store rooted at projectsDir. builtinDeps names the
// dependency entries (by package name) written into every project's
// manifest regardless of its own Packages list, mirroring
// flow_project_manager_config.builtin_dependencies.
func New(projectsDir string, builtinDeps []string) *Store {
	return &Store{
		projectsDir: projectsDir,
		builtinDeps: builtinDeps,
	}
}

// LoadAll reads every project directory under projectsDir into memory and
// returns them; a project whose flow-project.json fails to parse is
// skipped with a logged warning rather than aborting the whole load.
func (s *Store) LoadAll() ([]*flow.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.projectsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading projects dir: %w", err)
	}

	var projects []*flow.Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		proj, err := s.readProjectFile(entry.Name())
		if err != nil {
			logger.GetLogger().Warn().Str("project", entry.Name()).Err(err).Msg("skipping unreadable project")
			continue
		}
		projects = append(projects, proj)
	}
	return projects, nil
}

// Create materializes a new project directory, writing entrySource (the
// Code Emitter's rendering of the initial graph, supplied by the caller) as
// the project's src/main.rs. If a project with this name already exists on
// disk, Create returns the existing stored project unchanged rather than
// erroring or overwriting it (idempotent create).
func (s *Store) Create(name, version string, packages []flow.PackageRef, graph *flow.Graph, entrySource string) (*flow.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.readProjectFile(name); err == nil {
		return existing, nil
	}

	if graph == nil {
		graph = &flow.Graph{Nodes: map[string]*flow.Node{}}
	}
	project := &flow.Project{Name: name, Version: version, Packages: packages, Flow: graph}

	dir := s.projectDir(name)
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating project directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "target"), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating target directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating pkg directory: %w", err)
	}

	if err := s.writeProjectFile(name, project); err != nil {
		return nil, err
	}
	if err := s.writeManifest(name, project); err != nil {
		return nil, err
	}
	if err := atomicWriteFile(filepath.Join(dir, entrySourcePath), []byte(entrySource)); err != nil {
		return nil, fmt.Errorf("store: writing entry source: %w", err)
	}
	if err := atomicWriteFile(filepath.Join(dir, indexHTMLName), []byte(indexPlaceholder(name))); err != nil {
		return nil, fmt.Errorf("store: writing index.html: %w", err)
	}

	logger.GetLogger().Info().Str("project", name).Msg("project created")
	return project, nil
}

// Get returns the named project, reading it fresh from disk.
func (s *Store) Get(name string) (*flow.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.readProjectFile(name)
	if err != nil {
		return nil, false
	}
	return proj, true
}

// List returns every project currently on disk.
func (s *Store) List() ([]*flow.Project, error) {
	return s.LoadAll()
}

// Delete removes a project's entire directory tree. Deleting a project that
// does not exist is not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.projectDir(name)); err != nil {
		return fmt.Errorf("store: deleting project %q: %w", name, err)
	}
	logger.GetLogger().Info().Str("project", name).Msg("project deleted")
	return nil
}

// UpdateFlow rewrites only flow-project.json's flow graph; the manifest and
// entry source are left untouched. Compiling the project through
// internal/facade re-emits the entry source from the stored graph; the
// manifest is never rewritten after Create.
func (s *Store) UpdateFlow(name string, graph *flow.Graph) (*flow.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, err := s.readProjectFile(name)
	if err != nil {
		return nil, fmt.Errorf("store: project %q not found: %w", name, err)
	}
	project.Flow = graph
	if err := s.writeProjectFile(name, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Store) projectDir(name string) string {
	return filepath.Join(s.projectsDir, name)
}

func (s *Store) readProjectFile(name string) (*flow.Project, error) {
	data, err := os.ReadFile(filepath.Join(s.projectDir(name), projectFileName))
	if err != nil {
		return nil, err
	}
	var project flow.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("store: parsing %s: %w", projectFileName, err)
	}
	return &project, nil
}

func (s *Store) writeProjectFile(name string, project *flow.Project) error {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", projectFileName, err)
	}
	if err := atomicWriteFile(filepath.Join(s.projectDir(name), projectFileName), data); err != nil {
		return fmt.Errorf("store: writing %s: %w", projectFileName, err)
	}
	return nil
}

// manifestDoc mirrors a Cargo.toml: a [package] table plus a
// [dependencies] table assembled from the project's own PackageRefs and
// the store's configured builtin dependencies.
type manifestDoc struct {
	Package      manifestPackage               `toml:"package"`
	Dependencies map[string]manifestDependency `toml:"dependencies"`
}

type manifestPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Edition string `toml:"edition"`
}

// manifestDependency textualizes one flow.PackageRef: exactly one of
// Version, Path or Git is meaningful depending on how the ref points at its
// package.
type manifestDependency struct {
	Version string `toml:"version,omitempty"`
	Path    string `toml:"path,omitempty"`
	Git     string `toml:"git,omitempty"`
	Branch  string `toml:"branch,omitempty"`
}

func (s *Store) writeManifest(name string, project *flow.Project) error {
	doc := manifestDoc{
		Package:      manifestPackage{Name: name, Version: project.Version, Edition: "2021"},
		Dependencies: make(map[string]manifestDependency, len(project.Packages)+len(s.builtinDeps)),
	}
	for _, ref := range project.Packages {
		doc.Dependencies[ref.Name] = textualizeDependency(ref)
	}
	for _, builtin := range s.builtinDeps {
		if _, exists := doc.Dependencies[builtin]; exists {
			continue
		}
		doc.Dependencies[builtin] = manifestDependency{Version: "*"}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("store: encoding manifest: %w", err)
	}
	if err := atomicWriteFile(filepath.Join(s.projectDir(name), manifestFileName), buf.Bytes()); err != nil {
		return fmt.Errorf("store: writing manifest: %w", err)
	}
	return nil
}

func textualizeDependency(ref flow.PackageRef) manifestDependency {
	switch {
	case ref.Path != nil:
		return manifestDependency{Path: *ref.Path}
	case ref.Git != nil:
		dep := manifestDependency{Git: *ref.Git}
		if ref.Branch != nil {
			dep.Branch = *ref.Branch
		}
		return dep
	default:
		return manifestDependency{Version: ref.Version}
	}
}

func indexPlaceholder(name string) string {
	return fmt.Sprintf("<!doctype html>\n<html><head><title>%s</title></head><body></body></html>\n", name)
}

// WriteFile atomically (re)writes an arbitrary file inside a project
// directory, such as the entry source the Code Emitter produces. It is
// exported so internal/facade can update the entry source without
// duplicating the atomic-rename dance.
func WriteFile(path string, data []byte) error {
	return atomicWriteFile(path, data)
}

// atomicWriteFile writes data to a temp file in path's directory, then
// renames it into place, so a reader never observes a partially written
// file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
