package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowd/internal/store"
	"github.com/flowforge/flowd/pkg/flow"
)

func TestCreateMaterializesProjectLayout(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir, []string{"flowrs"})

	project, err := s.Create("demo", "0.1.0", nil, nil, "fn main() {}\n")
	require.NoError(t, err)
	require.Equal(t, "demo", project.Name)

	projectDir := filepath.Join(dir, "demo")
	require.FileExists(t, filepath.Join(projectDir, "flow-project.json"))
	require.FileExists(t, filepath.Join(projectDir, "Cargo.toml"))
	require.FileExists(t, filepath.Join(projectDir, "src", "main.rs"))
	require.FileExists(t, filepath.Join(projectDir, "index.html"))
	require.DirExists(t, filepath.Join(projectDir, "target"))
	require.DirExists(t, filepath.Join(projectDir, "pkg"))

	entry, err := os.ReadFile(filepath.Join(projectDir, "src", "main.rs"))
	require.NoError(t, err)
	require.Equal(t, "fn main() {}\n", string(entry))

	manifest, err := os.ReadFile(filepath.Join(projectDir, "Cargo.toml"))
	require.NoError(t, err)
	require.Contains(t, string(manifest), "flowrs")
	require.Contains(t, string(manifest), `name = "demo"`)
}

func TestCreateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir, nil)

	first, err := s.Create("demo", "0.1.0", nil, nil, "fn main() {}\n")
	require.NoError(t, err)

	second, err := s.Create("demo", "9.9.9", nil, &flow.Graph{Nodes: map[string]*flow.Node{"x": {NodeType: "i32", Constructor: "default"}}}, "fn main() { /* different */ }\n")
	require.NoError(t, err)

	require.Equal(t, first.Version, second.Version)
	require.Empty(t, second.Flow.Nodes)
}

func TestUpdateFlowOnlyRewritesProjectFile(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir, nil)
	_, err := s.Create("demo", "0.1.0", nil, nil, "fn main() {}\n")
	require.NoError(t, err)

	manifestPath := filepath.Join(dir, "demo", "Cargo.toml")
	before, err := os.ReadFile(manifestPath)
	require.NoError(t, err)

	graph := &flow.Graph{Nodes: map[string]*flow.Node{"n": {NodeType: "i32", Constructor: "default"}}}
	updated, err := s.UpdateFlow("demo", graph)
	require.NoError(t, err)
	require.Len(t, updated.Flow.Nodes, 1)

	after, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestDeleteRemovesProjectDirectory(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir, nil)
	_, err := s.Create("demo", "0.1.0", nil, nil, "fn main() {}\n")
	require.NoError(t, err)

	require.NoError(t, s.Delete("demo"))
	_, ok := s.Get("demo")
	require.False(t, ok)
}

func TestListReturnsAllCreatedProjects(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir, nil)
	_, err := s.Create("one", "0.1.0", nil, nil, "fn main() {}\n")
	require.NoError(t, err)
	_, err = s.Create("two", "0.1.0", nil, nil, "fn main() {}\n")
	require.NoError(t, err)

	projects, err := s.List()
	require.NoError(t, err)
	require.Len(t, projects, 2)
}
