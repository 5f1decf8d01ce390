// Package config loads and validates the host configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/modelroom/modelroom/pkg/errors"
)

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// extractLine pulls the line number out of a yaml.v3 error message.
func extractLine(err error) int {
	if err == nil {
		return 0
	}
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if len(m) != 2 {
		return 0
	}
	line, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0
	}
	return line
}

const (
	// DefaultListen is the HTTP bind address used when none is
	// configured.
	DefaultListen = ":8990"

	// DefaultWorkers bounds the number of concurrent training jobs.
	DefaultWorkers = 4

	// DefaultTrainTimeout caps a single create or update job.
	DefaultTrainTimeout = 10 * time.Minute
)

// Config is the host configuration document. Load fills every zero
// field with its default, so a missing or empty file yields a fully
// working single-node setup.
type Config struct {
	Version      string         `yaml:"version" validate:"omitempty,version"`
	Log          LogConfig      `yaml:"log"`
	HTTP         HTTPConfig     `yaml:"http"`
	Workers      int            `yaml:"workers" validate:"min=0,max=256"`
	TrainTimeout Duration       `yaml:"train_timeout" validate:"min=0"`
	Registry     RegistryConfig `yaml:"registry"`
	Storage      StorageConfig  `yaml:"storage"`
	Engines      []EngineConfig `yaml:"engines" validate:"omitempty,dive"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,log_level"`
	File  string `yaml:"file"`
	Human string `yaml:"human" validate:"omitempty,oneof=auto always never"`
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,listen_addr"`
}

// RegistryConfig selects the model record store.
type RegistryConfig struct {
	Backend string `yaml:"backend" validate:"omitempty,oneof=file sqlite postgres"`
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
}

// StorageConfig selects the artifact backend.
type StorageConfig struct {
	Backend string      `yaml:"backend" validate:"omitempty,oneof=fs minio"`
	Root    string      `yaml:"root"`
	Minio   MinioConfig `yaml:"minio"`
}

// MinioConfig holds the S3-compatible backend settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	Secure    bool   `yaml:"secure"`
}

// EngineConfig enables a built-in engine and optionally supplies
// argument defaults merged under explicit create arguments. An empty
// engines list enables every built-in.
type EngineConfig struct {
	Name     string         `yaml:"name" validate:"required,engine_name"`
	Enabled  bool           `yaml:"enabled"`
	Defaults map[string]any `yaml:"defaults"`
}

// UnmarshalYAML defaults enabled to true when the key is absent.
func (e *EngineConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawEngine struct {
		Name     string         `yaml:"name"`
		Enabled  *bool          `yaml:"enabled"`
		Defaults map[string]any `yaml:"defaults"`
	}

	var raw rawEngine
	if err := value.Decode(&raw); err != nil {
		return err
	}

	e.Name = raw.Name
	e.Defaults = raw.Defaults
	if raw.Enabled != nil {
		e.Enabled = *raw.Enabled
	} else {
		e.Enabled = true
	}
	return nil
}

// Duration decodes YAML durations spelled like "90s" or "10m".
type Duration time.Duration

// UnmarshalYAML parses the duration string form.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"10m\": %w", err)
	}
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads, defaults, and validates the configuration at path. A
// missing file is not an error: the defaults stand in for it.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Fall through to defaults.
		case err != nil:
			return nil, pkgerrors.NewParseError(path, 0, err)
		default:
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, pkgerrors.NewParseError(path, extractLine(err), err)
			}
		}
	}

	applyDefaults(cfg)
	if err := expandPaths(cfg); err != nil {
		return nil, pkgerrors.NewParseError(path, 0, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Human == "" {
		cfg.Log.Human = "auto"
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = DefaultListen
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.TrainTimeout == 0 {
		cfg.TrainTimeout = Duration(DefaultTrainTimeout)
	}
	if cfg.Registry.Backend == "" {
		cfg.Registry.Backend = "file"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "fs"
	}
}

func expandPaths(cfg *Config) error {
	for _, p := range []*string{&cfg.Log.File, &cfg.Registry.Path, &cfg.Storage.Root} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func expandPath(p string) (string, error) {
	if p == "" || !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", p, err)
	}
	if p == "~" {
		return home, nil
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:]), nil
	}
	// ~user form is left alone.
	return p, nil
}
