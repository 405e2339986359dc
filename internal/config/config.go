// Package config loads flowd's JSON configuration file and exposes the
// derived paths and addresses the rest of the service needs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FlowProjectManagerConfig mirrors the flow_project_manager_config object
// in the configuration file, field names included.
type FlowProjectManagerConfig struct {
	ProjectFolder       string   `json:"project_folder"`
	ProjectJSONFileName string   `json:"project_json_file_name"`
	BuiltinDependencies []string `json:"builtin_dependencies"`
	RustFmtPath         string   `json:"rust_fmt_path"`
	DoFormatting        bool     `json:"do_formatting"`
}

// ServiceConfig holds runtime paths needed by the ambient stack (logging,
// daemon) that aren't part of the project-manager configuration.
type ServiceConfig struct {
	DataDir string `json:"data_dir"`
}

// LoggingConfig configures the arbor logger singleton.
type LoggingConfig struct {
	Level      string   `json:"level"`
	Format     string   `json:"format"`
	Output     []string `json:"output"`
	TimeFormat string   `json:"time_format"`
	MaxSizeMB  int      `json:"max_size_mb"`
	MaxBackups int      `json:"max_backups"`
}

// HTTPConfig holds the defaults for HOST_IP/HOST_PORT when the environment
// does not override them.
type HTTPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// RunnerConfig names the external runner binaries the Process Supervisor
// launches to dynamically load a compiled native artifact, and whether the
// service itself is running in release mode (which both selects which
// runner binary to spawn and which cargo profile to compile with).
type RunnerConfig struct {
	DebugPath        string `json:"debug_path"`
	ReleasePath      string `json:"release_path"`
	StaticServerPath string `json:"static_server_path"`
	Release          bool   `json:"release"`
}

// Config is the full flowd configuration document.
type Config struct {
	FlowProjectManagerConfig FlowProjectManagerConfig `json:"flow_project_manager_config"`
	FlowPackagesFolder       string                   `json:"flow_packages_folder"`
	Service                  ServiceConfig            `json:"service"`
	Logging                  LoggingConfig            `json:"logging"`
	HTTP                     HTTPConfig               `json:"http"`
	Runner                   RunnerConfig             `json:"runner"`
}

// BuildProfile returns "release" or "debug", matching the cargo profile
// directory the Compiler Driver builds into and the Process Supervisor
// probes.
func (c *Config) BuildProfile() string {
	if c.Runner.Release {
		return "release"
	}
	return "debug"
}

// RunnerBinary returns the runner executable matching the service's own
// debug/release mode.
func (c *Config) RunnerBinary() string {
	if c.Runner.Release {
		return c.Runner.ReleasePath
	}
	return c.Runner.DebugPath
}

// Default returns the configuration used when CONFIG_PATH names a file that
// does not exist.
func Default() *Config {
	return &Config{
		FlowProjectManagerConfig: FlowProjectManagerConfig{
			ProjectFolder:       "data/projects",
			ProjectJSONFileName: "flow-project.json",
			BuiltinDependencies: []string{"flowrs", "serde", "serde_json"},
			RustFmtPath:         "rustfmt",
			DoFormatting:        true,
		},
		FlowPackagesFolder: "data/packages",
		Service:            ServiceConfig{DataDir: "data"},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     []string{"console"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		HTTP: HTTPConfig{Host: "0.0.0.0", Port: 8080},
		Runner: RunnerConfig{
			DebugPath:        "flowrs-runner-debug",
			ReleasePath:      "flowrs-runner",
			StaticServerPath: "static-web-server",
			Release:          true,
		},
	}
}

// Load reads path as JSON into a Config seeded with Default() values.
// A missing file is not an error: Load returns Default() unchanged, so the
// service runs with baked-in defaults when the configuration file does not
// exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by CONFIG_PATH, falling back to
// "config.json" in the working directory when unset, then applies
// HOST_IP/HOST_PORT overrides.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.json"
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if host := os.Getenv("HOST_IP"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("HOST_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
			return nil, fmt.Errorf("config: invalid HOST_PORT %q: %w", port, err)
		}
		cfg.HTTP.Port = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects a configuration missing fields the rest of the service
// assumes are present.
func (c *Config) Validate() error {
	if c.FlowProjectManagerConfig.ProjectFolder == "" {
		return fmt.Errorf("config: flow_project_manager_config.project_folder must not be empty")
	}
	if c.FlowProjectManagerConfig.ProjectJSONFileName == "" {
		return fmt.Errorf("config: flow_project_manager_config.project_json_file_name must not be empty")
	}
	if c.FlowPackagesFolder == "" {
		return fmt.Errorf("config: flow_packages_folder must not be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: http port %d out of range", c.HTTP.Port)
	}
	return nil
}

// ProjectsDir returns the absolute path to the project folder.
func (c *Config) ProjectsDir() string {
	abs, err := filepath.Abs(c.FlowProjectManagerConfig.ProjectFolder)
	if err != nil {
		return c.FlowProjectManagerConfig.ProjectFolder
	}
	return abs
}

// PackagesDir returns the absolute path to the packages folder.
func (c *Config) PackagesDir() string {
	abs, err := filepath.Abs(c.FlowPackagesFolder)
	if err != nil {
		return c.FlowPackagesFolder
	}
	return abs
}

// Address returns the "host:port" string the HTTP server should bind to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// LogPath returns the daemon's own log file path, distinct from the arbor
// writers configured by internal/logger.
func (c *Config) LogPath() string {
	return filepath.Join(c.Service.DataDir, "logs", "flowd.daemon.log")
}

// PIDPath returns the path of the daemon's PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Service.DataDir, "flowd.pid")
}

// EnsureDirectories creates every directory the service writes to:
// the project store, the packages folder, and the service data dir.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.ProjectsDir(), c.PackagesDir(), c.Service.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	return nil
}
