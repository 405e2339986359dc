// Command flowd runs the flow-project build-and-run orchestrator service.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/flowforge/flowd/internal/api"
	"github.com/flowforge/flowd/internal/compiler"
	"github.com/flowforge/flowd/internal/config"
	"github.com/flowforge/flowd/internal/facade"
	"github.com/flowforge/flowd/internal/logger"
	"github.com/flowforge/flowd/internal/service"
	"github.com/flowforge/flowd/internal/store"
	"github.com/flowforge/flowd/internal/supervisor"
	"github.com/flowforge/flowd/pkg/catalog"
)

var version = "dev"

func main() {
	stopFlag := flag.Bool("stop", false, "stop a running daemon")
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowd: loading config: %v\n", err)
		os.Exit(1)
	}

	if *stopFlag {
		if err := service.StopRunning(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "flowd: stop: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("flowd stopped")
		return
	}

	if running, pid := service.IsRunning(cfg); running {
		fmt.Fprintf(os.Stderr, "flowd: already running (pid %d)\n", pid)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "flowd: %v\n", err)
		os.Exit(1)
	}

	logger.SetupLogger(cfg)
	log := logger.GetLogger()
	log.Info().Str("version", version).Str("address", cfg.Address()).Msg("starting flowd")

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := config.NewWatcher(path, cfg); err != nil {
			log.Warn().Err(err).Msg("config hot-reload watcher not started")
		}
	}

	cat := catalog.New()
	if warnings, err := cat.LoadDir(cfg.PackagesDir()); err != nil {
		log.Warn().Err(err).Msg("failed to load packages directory")
	} else {
		for _, w := range warnings {
			log.Warn().Str("package_file", w).Msg("skipping unreadable package")
		}
	}
	st := store.New(cfg.ProjectsDir(), cfg.FlowProjectManagerConfig.BuiltinDependencies)
	if _, err := st.LoadAll(); err != nil {
		log.Warn().Err(err).Msg("failed to preload existing projects")
	}
	cd := compiler.New(cfg.FlowProjectManagerConfig.RustFmtPath, cfg.FlowProjectManagerConfig.DoFormatting, cfg.Runner.Release)
	sup := supervisor.New()
	svc := facade.New(cfg, cat, st, cd, sup)

	daemon := service.NewDaemon(cfg)
	server := api.NewServer(cfg, svc, daemon.ShuttingDown())

	if err := daemon.Start(server.Handler()); err != nil {
		log.Error().Err(err).Msg("failed to start daemon")
		os.Exit(1)
	}

	daemon.Wait()
	logger.Stop()
}
