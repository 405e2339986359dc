package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendLogTrimsToMaxLogLines(t *testing.T) {
	p := &process{}
	for i := 0; i < maxLogLines+10; i++ {
		p.appendLog("line")
	}
	require.Len(t, p.drainBuffer(), maxLogLines)
}

func TestProbeArtifactSucceedsOnceFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o755))

	s := New()
	require.NoError(t, s.probeArtifact(context.Background(), path))
}

func TestProbeArtifactFailsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	s := New()
	err := s.probeArtifact(ctx, filepath.Join(t.TempDir(), "never-exists"))
	require.Error(t, err)
}

func TestStopUnknownProcessErrors(t *testing.T) {
	s := New()
	require.Error(t, s.Stop("missing"))
}

func TestGetLogsUnknownProcessErrors(t *testing.T) {
	s := New()
	_, err := s.GetLogs("missing")
	require.Error(t, err)
}

func TestAddrHostAndPort(t *testing.T) {
	require.Equal(t, "127.0.0.1", addrHost("127.0.0.1:9000"))
	require.Equal(t, "9000", addrPort("127.0.0.1:9000"))
}

func TestSpawnRunnerDrainsOutputAndReportsLogs(t *testing.T) {
	dir := t.TempDir()
	profileDir := filepath.Join(dir, "target", "release")
	require.NoError(t, os.MkdirAll(profileDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(profileDir, "libdemo.so"), []byte("fake-shared-lib"), 0o644))

	// Stand-in runner binary: echoes the --flow path it was handed, so the
	// test can confirm the artifact path (not the runner itself) is what
	// got resolved and threaded through.
	runner := filepath.Join(dir, "runner.sh")
	require.NoError(t, os.WriteFile(runner, []byte("#!/bin/sh\necho \"loaded $2\"\necho world\n"), 0o755))

	s := New()
	id, err := s.SpawnRunner(context.Background(), runner, profileDir, "demo")
	require.NoError(t, err)

	// GetLogs destructively drains, so accumulate across polls rather than
	// expecting all lines to land in a single call.
	var collected []string
	require.Eventually(t, func() bool {
		logs, err := s.GetLogs(id)
		require.NoError(t, err)
		collected = append(collected, logs...)
		return len(collected) == 2
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"loaded " + filepath.Join(profileDir, "libdemo.so"), "world"}, collected)
}

func TestFindNativeArtifactTriesStemAndLibPrefixedNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libdemo.dylib"), []byte("x"), 0o644))

	path, err := FindNativeArtifact(context.Background(), dir, "demo")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "libdemo.dylib"), path)
}

func TestFindNativeArtifactFailsWhenAbsent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := FindNativeArtifact(ctx, t.TempDir(), "demo")
	require.Error(t, err)
}
