package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScanDiagnosticsFindsCargoErrorMarkers(t *testing.T) {
	output := "   Compiling demo v0.1.0\nerror[E0382]: borrow of moved value\n   |\nwarning: unused variable\n"
	diags := scanDiagnostics(output)
	require.Len(t, diags, 1)
	require.Contains(t, diags[0], "E0382")
}

func TestScanDiagnosticsCleanOutputIsEmpty(t *testing.T) {
	require.Empty(t, scanDiagnostics("   Compiling demo v0.1.0\n    Finished release [optimized] target(s) in 1.21s\n"))
}

func TestLastCompileReadsNativeArtifactModTime(t *testing.T) {
	dir := t.TempDir()
	profileDir := filepath.Join(dir, "target", "release")
	require.NoError(t, os.MkdirAll(profileDir, 0o755))
	artifact := filepath.Join(profileDir, "libdemo.so")
	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0o644))
	at := time.Date(2026, 3, 5, 14, 30, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(artifact, at, at))

	d := New("rustfmt", false, true)
	ts, ok := d.LastCompile(dir, "demo", BuildNative)
	require.True(t, ok)
	require.Equal(t, "05.03.2026 14:30:00", ts)
}

func TestLastCompileMissingArtifactReturnsNotOK(t *testing.T) {
	d := New("rustfmt", false, true)
	_, ok := d.LastCompile(t.TempDir(), "demo", BuildNative)
	require.False(t, ok)
}

func TestLastCompileWebReadsPkgDirModTime(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	d := New("rustfmt", false, true)
	_, ok := d.LastCompile(dir, "demo", BuildWeb)
	require.True(t, ok)
}

func TestRunReportsErrorWhenCommandFails(t *testing.T) {
	dir := t.TempDir()
	d := New("rustfmt", false, true)
	_, err := d.run(context.Background(), dir, "exit 1")
	require.Error(t, err)
	_, ok := d.LastCompile(dir, "demo", BuildNative)
	require.False(t, ok)
}

func TestRunCapturesCombinedOutput(t *testing.T) {
	d := New("rustfmt", false, true)
	out, err := d.run(context.Background(), t.TempDir(), "echo hello")
	require.NoError(t, err)
	require.Contains(t, out, "hello")
}

func TestFormatSkipsWhenNoEntrySourcePresent(t *testing.T) {
	d := New("rustfmt-does-not-exist", true, true)
	require.NoError(t, d.format(context.Background(), t.TempDir()))
}

func TestCommandForMatchesServiceRunMode(t *testing.T) {
	release := New("rustfmt", false, true)
	require.Equal(t, "cargo build --release", release.commandFor(BuildNative))
	require.Equal(t, "wasm-pack build --target web --release", release.commandFor(BuildWeb))

	debug := New("rustfmt", false, false)
	require.Equal(t, "cargo build", debug.commandFor(BuildNative))
	require.Equal(t, "wasm-pack build --target web --dev", debug.commandFor(BuildWeb))
}
