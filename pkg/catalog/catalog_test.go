package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowd/pkg/catalog"
	"github.com/flowforge/flowd/pkg/flow"
)

func TestNewIncludesBuiltInPackage(t *testing.T) {
	cat := catalog.New()
	pkg, ok := cat.GetPackage("built-in")
	require.True(t, ok)
	require.Contains(t, pkg.Crates, "primitives")
}

func TestGetTypeResolvesBareIdentifierAgainstBuiltIn(t *testing.T) {
	cat := catalog.New()
	typ, ok := cat.GetType("i32")
	require.True(t, ok)
	require.Contains(t, typ.Constructors, "default")
	require.Contains(t, typ.Constructors, "json")
}

// A qualified name never repeats its own package segment: a type declared
// at "pkg::crate::mod1::...::name" is looked up as "crate::mod1::...::name",
// with the package resolved by trying seg0 as a crate name across every
// registered package.
func TestGetTypeResolvesQualifiedCrateName(t *testing.T) {
	cat := catalog.New()
	pkg := &flow.Package{
		Name:    "flowrs_std",
		Version: "0.2.0",
		Crates: map[string]*flow.Crate{
			"flowrs_std": {
				Types: map[string]*flow.Type{
					"DebugNode": {
						TypeParameters: []string{"I"},
						Constructors: map[string]*flow.Constructor{
							"new_with_observer": {Kind: flow.ConstructorNewWithObserver},
						},
					},
				},
			},
		},
	}
	require.NoError(t, cat.AddPackage(pkg))

	typ, ok := cat.GetType("flowrs_std::DebugNode")
	require.True(t, ok)
	require.Equal(t, []string{"I"}, typ.TypeParameters)
}

func TestGetTypeResolvesThroughNestedModules(t *testing.T) {
	cat := catalog.New()
	pkg := &flow.Package{
		Name:    "flowrs_std",
		Version: "0.2.0",
		Crates: map[string]*flow.Crate{
			"flowrs_std": {
				Modules: map[string]*flow.Module{
					"nodes": {
						Modules: map[string]*flow.Module{
							"timer": {
								Types: map[string]*flow.Type{
									"SelectedTimer": {
										TypeParameters: []string{"U"},
										Constructors: map[string]*flow.Constructor{
											"new": {Kind: flow.ConstructorNew},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
	require.NoError(t, cat.AddPackage(pkg))

	typ, ok := cat.GetType("flowrs_std::nodes::timer::SelectedTimer")
	require.True(t, ok)
	require.Equal(t, []string{"U"}, typ.TypeParameters)

	_, ok = cat.GetType("flowrs_std::nodes::timer::Missing")
	require.False(t, ok)
}

// TestGetTypeCrossPackageFirstMatchWins exercises the explicit cross-package
// ambiguity: two packages each declaring a crate named "shared" resolve to
// whichever is found first during map iteration.
func TestGetTypeCrossPackageFirstMatchWins(t *testing.T) {
	cat := catalog.New()
	makePkg := func(name string, marker string) *flow.Package {
		return &flow.Package{
			Name:    name,
			Version: "0.1.0",
			Crates: map[string]*flow.Crate{
				"shared": {
					Types: map[string]*flow.Type{
						"Thing": {Constructors: map[string]*flow.Constructor{marker: {Kind: flow.ConstructorFromDefault}}},
					},
				},
			},
		}
	}
	require.NoError(t, cat.AddPackage(makePkg("alpha", "from_alpha")))
	require.NoError(t, cat.AddPackage(makePkg("beta", "from_beta")))

	typ, ok := cat.GetType("shared::Thing")
	require.True(t, ok)
	require.Len(t, typ.Constructors, 1)
}

func TestAddPackageIsIdempotentForSameVersion(t *testing.T) {
	cat := catalog.New()
	pkg := &flow.Package{Name: "demo", Version: "1.0.0", Crates: map[string]*flow.Crate{}}
	require.NoError(t, cat.AddPackage(pkg))
	require.NoError(t, cat.AddPackage(pkg))
	require.Len(t, cat.ListPackages(), 2) // built-in + demo
}

// AddPackage is idempotent on name alone: re-adding an already-registered
// name is a no-op even when the version differs, and the first registration
// wins.
func TestAddPackageIsNoOpOnNameAloneRegardlessOfVersion(t *testing.T) {
	cat := catalog.New()
	first := &flow.Package{Name: "demo", Version: "1.0.0", Crates: map[string]*flow.Crate{}}
	second := &flow.Package{Name: "demo", Version: "2.0.0", Crates: map[string]*flow.Crate{}}
	require.NoError(t, cat.AddPackage(first))
	require.NoError(t, cat.AddPackage(second))

	pkg, ok := cat.GetPackage("demo")
	require.True(t, ok)
	require.Equal(t, "1.0.0", pkg.Version)
	require.Len(t, cat.ListPackages(), 2) // built-in + demo
}

func TestAddPackageRejectsReservedName(t *testing.T) {
	cat := catalog.New()
	err := cat.AddPackage(&flow.Package{Name: "built-in", Version: "1.0.0"})
	require.Error(t, err)
}

func TestLoadDirRegistersEveryPackageFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flowrs_std.json"),
		[]byte(`{"name":"flowrs_std","version":"0.2.0","crates":{}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not-json.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not valid"), 0o644))

	cat := catalog.New()
	warnings, err := cat.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	_, ok := cat.GetPackage("flowrs_std")
	require.True(t, ok)
}

func TestLoadDirMissingDirIsNotAnError(t *testing.T) {
	cat := catalog.New()
	warnings, err := cat.LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Empty(t, warnings)
}
