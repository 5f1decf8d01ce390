package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/modelroom/modelroom/internal/config"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/engines"
	"github.com/modelroom/modelroom/internal/logger"
	"github.com/modelroom/modelroom/internal/monitoring"
	"github.com/modelroom/modelroom/internal/registry"
	"github.com/modelroom/modelroom/internal/runner"
	"github.com/modelroom/modelroom/internal/storage"
)

// appContext bundles the long-lived services a command needs: the
// loaded configuration, the shared logger, and the runner wired to the
// configured record store and artifact backend.
type appContext struct {
	cfg      *config.Config
	log      *logger.Logger
	engines  *engine.Registry
	records  registry.Store
	run      *runner.Runner
	defaults map[string]engine.Args
}

// buildApp loads the configuration and assembles the host in-process.
// Commands that expose prometheus metrics pass a monitoring registry;
// one-shot commands pass nil and the runner records nothing.
func buildApp(flags *rootFlags, metrics *monitoring.Registry) (*appContext, error) {
	configPath := flags.configPath
	if configPath == "" {
		path, err := defaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("determine config path: %w", err)
		}
		configPath = path
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := newAppLogger(flags, cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	engineReg := engine.NewRegistry(log)
	defaults, err := wireEngines(engineReg, cfg, log)
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	records, err := openRecordStore(cfg, log)
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	artifacts, err := openArtifactStore(cfg)
	if err != nil {
		_ = records.Close()
		_ = log.Close()
		return nil, err
	}

	metricsPath, err := defaultMetricsPath()
	if err != nil {
		_ = records.Close()
		_ = log.Close()
		return nil, fmt.Errorf("determine metrics cache path: %w", err)
	}
	cache, err := registry.NewMetricsCache(metricsPath)
	if err != nil {
		_ = records.Close()
		_ = log.Close()
		return nil, fmt.Errorf("open metrics cache: %w", err)
	}

	var mon runner.Monitor
	if metrics != nil {
		mon = runner.NewMonitor(metrics)
	}

	run, err := runner.New(runner.Options{
		Engines:      engineReg,
		Records:      records,
		Storage:      artifacts,
		Metrics:      cache,
		Monitor:      mon,
		Logger:       log,
		Workers:      cfg.Workers,
		TrainTimeout: time.Duration(cfg.TrainTimeout),
	})
	if err != nil {
		_ = records.Close()
		_ = log.Close()
		return nil, err
	}

	return &appContext{
		cfg:      cfg,
		log:      log,
		engines:  engineReg,
		records:  records,
		run:      run,
		defaults: defaults,
	}, nil
}

// Close drains outstanding jobs before releasing the store and the
// log file, so a one-shot command never abandons a training job.
func (a *appContext) Close() {
	if a.run != nil {
		_ = a.run.Close()
	}
	if a.records != nil {
		_ = a.records.Close()
	}
	_ = a.log.Close()
}

// argsWithDefaults merges the engine's configured argument defaults
// under the explicit arguments.
func (a *appContext) argsWithDefaults(engineName string, args engine.Args) engine.Args {
	defaults := a.defaults[engineName]
	if len(defaults) == 0 {
		return args
	}

	merged := make(engine.Args, len(defaults)+len(args))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range args {
		merged[key] = value
	}
	return merged
}

func newAppLogger(flags *rootFlags, cfg *config.Config) (*logger.Logger, error) {
	level := cfg.Log.Level
	if flags.verbose {
		level = "debug"
	}

	filePath := flags.logFile
	if filePath == "" {
		filePath = cfg.Log.File
	}
	if filePath == "" {
		path, err := defaultLogPath()
		if err != nil {
			return nil, err
		}
		filePath = path
	}

	return logger.New(logger.Options{
		Level:         level,
		HumanReadable: humanLogOutput(cfg),
		Writer:        os.Stderr,
		FilePath:      filePath,
	})
}

func humanLogOutput(cfg *config.Config) bool {
	switch cfg.Log.Human {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stderr.Fd()))
	}
}

// wireEngines registers the built-in engines, honoring per-engine
// enable flags, and collects configured argument defaults. Configured
// names that match no built-in are reported here rather than at parse
// time, since the config package does not know the built-in set.
func wireEngines(reg *engine.Registry, cfg *config.Config, log *logger.Logger) (map[string]engine.Args, error) {
	configured := make(map[string]config.EngineConfig, len(cfg.Engines))
	for _, entry := range cfg.Engines {
		configured[entry.Name] = entry
	}

	known := make(map[string]bool)
	defaults := make(map[string]engine.Args)

	for _, e := range engines.Builtins() {
		name := e.Metadata().Name
		known[name] = true

		if entry, ok := configured[name]; ok {
			if !entry.Enabled {
				continue
			}
			if len(entry.Defaults) > 0 {
				defaults[name] = engine.Args(entry.Defaults)
			}
		}

		if err := reg.Register(e); err != nil {
			return nil, fmt.Errorf("register engine %q: %w", name, err)
		}
	}

	for _, entry := range cfg.Engines {
		if !known[entry.Name] {
			log.WithFields(map[string]any{"engine": entry.Name}).
				Warn("configured engine is not built in, ignoring")
		}
	}

	return defaults, nil
}

func openRecordStore(cfg *config.Config, log *logger.Logger) (registry.Store, error) {
	switch cfg.Registry.Backend {
	case "sqlite":
		path := cfg.Registry.Path
		if path == "" {
			p, err := defaultSQLitePath()
			if err != nil {
				return nil, fmt.Errorf("determine registry path: %w", err)
			}
			path = p
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
		return registry.NewSQLStore("sqlite3", path, log)

	case "postgres":
		return registry.NewSQLStore("postgres", cfg.Registry.DSN, log)

	default:
		path := cfg.Registry.Path
		if path == "" {
			p, err := defaultRecordsPath()
			if err != nil {
				return nil, fmt.Errorf("determine registry path: %w", err)
			}
			path = p
		}
		return registry.NewFileStore(path)
	}
}

func openArtifactStore(cfg *config.Config) (storage.Provider, error) {
	if cfg.Storage.Backend == "minio" {
		return storage.NewMinioProvider(context.Background(), storage.MinioConfig{
			Endpoint:  cfg.Storage.Minio.Endpoint,
			AccessKey: cfg.Storage.Minio.AccessKey,
			SecretKey: cfg.Storage.Minio.SecretKey,
			Bucket:    cfg.Storage.Minio.Bucket,
			Prefix:    cfg.Storage.Minio.Prefix,
			Region:    cfg.Storage.Minio.Region,
			UseSSL:    cfg.Storage.Minio.Secure,
		})
	}

	root := cfg.Storage.Root
	if root == "" {
		path, err := defaultArtifactsRoot()
		if err != nil {
			return nil, fmt.Errorf("determine artifacts root: %w", err)
		}
		root = path
	}
	return storage.NewFSProvider(root)
}
