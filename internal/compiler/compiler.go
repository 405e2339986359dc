// Package compiler implements the Compiler Driver: it shells out to the
// external toolchain that turns an emitted project into a native shared
// library or a wasm bundle, and reports when a project's build artifact was
// last written.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/flowforge/flowd/internal/logger"
	"github.com/flowforge/flowd/internal/supervisor"
)

// BuildKind selects which toolchain invocation Compile runs.
type BuildKind string

const (
	BuildNative BuildKind = "native"
	BuildWeb    BuildKind = "web"
)

const lastCompileTimeFormat = "02.01.2006 15:04:05"

// diagnosticMarkers are substrings cargo prints on failure even when the
// process itself exits 0 (warnings-as-errors builds, some wasm-pack
// wrapper scripts that swallow the real exit code).
var diagnosticMarkers = []string{"error[", "error:", "panicked at"}

// Result reports the outcome of one Compile invocation.
type Result struct {
	Success     bool
	Output      string
	Diagnostics []string
	CompiledAt  time.Time
}

// Driver invokes the external build toolchain for a project directory.
type Driver struct {
	rustFmtPath  string
	doFormatting bool
	release      bool
}

// New returns a Driver. rustFmtPath names the formatter binary to run
// against the emitted entry source before compiling, when doFormatting is
// true, mirroring flow_project_manager_config.{rust_fmt_path,do_formatting}.
// release selects the cargo/wasm-pack profile to build, matching whichever
// mode the service itself is running in.
func New(rustFmtPath string, doFormatting, release bool) *Driver {
	return &Driver{rustFmtPath: rustFmtPath, doFormatting: doFormatting, release: release}
}

// Compile builds projectDir for kind. A non-zero exit code is reported as a
// failed Result, not a Go error; a Go error means the toolchain itself
// could not be invoked at all (e.g. missing binary).
func (d *Driver) Compile(ctx context.Context, projectDir string, kind BuildKind) (*Result, error) {
	log := logger.GetLogger()

	if d.doFormatting {
		if err := d.format(ctx, projectDir); err != nil {
			log.Warn().Str("project_dir", projectDir).Err(err).Msg("formatting failed, continuing with unformatted source")
		}
	}

	cmd := d.commandFor(kind)
	output, err := d.run(ctx, projectDir, cmd)
	success := err == nil
	diags := scanDiagnostics(output)
	if len(diags) > 0 {
		success = false
	}

	result := &Result{Success: success, Output: output, Diagnostics: diags, CompiledAt: time.Now()}

	if err != nil {
		var exitErr *exec.ExitError
		if !asExitError(err, &exitErr) {
			return nil, fmt.Errorf("compiler: invoking toolchain: %w", err)
		}
	}

	log.Info().Str("project_dir", projectDir).Bool("success", success).Str("kind", string(kind)).Msg("compile finished")
	return result, nil
}

// LastCompile locates the built artifact for projectName under projectDir
// and returns its last-modified timestamp formatted DD.MM.YYYY HH:MM:SS in
// local time. It reports false if the artifact isn't present — the build
// tool's own output directory is the source of truth, not a side record.
func (d *Driver) LastCompile(projectDir, projectName string, kind BuildKind) (string, bool) {
	info, ok := d.statArtifact(projectDir, projectName, kind)
	if !ok {
		return "", false
	}
	return info.ModTime().Local().Format(lastCompileTimeFormat), true
}

func (d *Driver) statArtifact(projectDir, projectName string, kind BuildKind) (os.FileInfo, bool) {
	if kind == BuildWeb {
		info, err := os.Stat(filepath.Join(projectDir, "pkg"))
		if err != nil {
			return nil, false
		}
		return info, true
	}
	profileDir := filepath.Join(projectDir, "target", d.profileDirName())
	path, ok := supervisor.ResolveNativeArtifact(profileDir, projectName)
	if !ok {
		return nil, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	return info, true
}

func (d *Driver) profileDirName() string {
	if d.release {
		return "release"
	}
	return "debug"
}

func (d *Driver) format(ctx context.Context, projectDir string) error {
	entry := filepath.Join(projectDir, "src", "main.rs")
	if _, err := os.Stat(entry); err != nil {
		return nil
	}
	cmd := exec.CommandContext(ctx, d.rustFmtPath, entry)
	cmd.Dir = projectDir
	return cmd.Run()
}

// commandFor builds the toolchain invocation for kind, applying the
// release/debug flag matching the service's own run mode.
func (d *Driver) commandFor(kind BuildKind) string {
	if kind == BuildWeb {
		if d.release {
			return "wasm-pack build --target web --release"
		}
		return "wasm-pack build --target web --dev"
	}
	if d.release {
		return "cargo build --release"
	}
	return "cargo build"
}

// run shells cmd out through sh -c, exactly as orchestra's worker does for
// arbitrary user-provided commands, and returns combined stdout+stderr.
func (d *Driver) run(ctx context.Context, dir, cmd string) (string, error) {
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Dir = dir
	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf
	err := c.Run()
	return buf.String(), err
}

func scanDiagnostics(output string) []string {
	var found []string
	for _, line := range strings.Split(output, "\n") {
		for _, marker := range diagnosticMarkers {
			if strings.Contains(line, marker) {
				found = append(found, strings.TrimSpace(line))
				break
			}
		}
	}
	return found
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}
