package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowd/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, config.Default().FlowProjectManagerConfig.ProjectFolder, cfg.FlowProjectManagerConfig.ProjectFolder)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"flow_project_manager_config": {
			"project_folder": "custom/projects",
			"project_json_file_name": "flow-project.json",
			"builtin_dependencies": ["flowrs"],
			"rust_fmt_path": "rustfmt",
			"do_formatting": false
		},
		"flow_packages_folder": "custom/packages",
		"http": {"host": "127.0.0.1", "port": 9001}
	}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom/projects", cfg.FlowProjectManagerConfig.ProjectFolder)
	require.False(t, cfg.FlowProjectManagerConfig.DoFormatting)
	require.Equal(t, "127.0.0.1:9001", cfg.Address())
}

func TestValidateRejectsMissingProjectFolder(t *testing.T) {
	cfg := config.Default()
	cfg.FlowProjectManagerConfig.ProjectFolder = ""
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Port = 0
	require.Error(t, cfg.Validate())
}

func TestBuildProfileAndRunnerBinaryFollowReleaseFlag(t *testing.T) {
	cfg := config.Default()
	cfg.Runner.Release = true
	require.Equal(t, "release", cfg.BuildProfile())
	require.Equal(t, cfg.Runner.ReleasePath, cfg.RunnerBinary())

	cfg.Runner.Release = false
	require.Equal(t, "debug", cfg.BuildProfile())
	require.Equal(t, cfg.Runner.DebugPath, cfg.RunnerBinary())
}

func TestWatcherPicksUpChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	initial, err := config.Load(path)
	require.NoError(t, err)

	w, err := config.NewWatcher(path, initial)
	require.NoError(t, err)
	defer w.Close()

	updated := config.Default()
	updated.HTTP.Port = 9100
	data, err := json.Marshal(updated)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.Eventually(t, func() bool {
		return w.Current().HTTP.Port == 9100
	}, time.Second, 20*time.Millisecond)
}
