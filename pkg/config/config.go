// Package config loads the optional raven.yaml application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-raven/raven/pkg/logging"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/remote"
	"github.com/go-raven/raven/pkg/render"
)

// FileName is the configuration file looked up in the app directory.
const FileName = "raven.yaml"

// Config represents the optional raven.yaml configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Render   RenderConfig   `yaml:"render"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Protocol ProtocolConfig `yaml:"protocol"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
}

// RenderConfig contains coordinator settings.
type RenderConfig struct {
	// Debug turns on debug logging unless log.level is set.
	Debug         bool `yaml:"debug,omitempty"`
	AuditIdentity bool `yaml:"audit_identity,omitempty"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// StorageConfig locates the persisted-binding database.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ProtocolConfig pins the version stamped on remote renderer frames.
type ProtocolConfig struct {
	Version string `yaml:"version,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root            string
	AppName         string
	Debug           bool
	AuditIdentity   bool
	LogLevel        string
	LogFormat       string
	StoragePath     string
	ProtocolVersion string
}

// LoadOptional reads raven.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	return &cfg, nil
}

// Resolve loads raven.yaml (if present), applies defaults and validates
// the result.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(dir)
	}

	level := strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if level == "" {
		level = "info"
		if cfg.Render.Debug {
			level = "debug"
		}
	}
	if _, err := logging.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("%s: log.level: %w", FileName, err)
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if format == "" {
		format = logging.FormatAuto
	}
	switch format {
	case logging.FormatAuto, logging.FormatText, logging.FormatJSON:
	default:
		return nil, fmt.Errorf("%s: log.format: unknown format %q", FileName, cfg.Log.Format)
	}

	storagePath := strings.TrimSpace(cfg.Storage.Path)
	if storagePath == "" {
		storagePath = filepath.Join(dir, ".raven", "state.db")
	} else if !filepath.IsAbs(storagePath) {
		storagePath = filepath.Join(dir, storagePath)
	}

	protocol := strings.TrimSpace(cfg.Protocol.Version)
	if protocol == "" {
		protocol = patch.ProtocolVersion
	}
	if err := validateProtocol(protocol); err != nil {
		return nil, err
	}

	return &Resolved{
		Root:            dir,
		AppName:         appName,
		Debug:           cfg.Render.Debug,
		AuditIdentity:   cfg.Render.AuditIdentity,
		LogLevel:        level,
		LogFormat:       format,
		StoragePath:     storagePath,
		ProtocolVersion: protocol,
	}, nil
}

// LogOptions returns the logging options for the resolved level and format.
func (r *Resolved) LogOptions() logging.Options {
	return logging.Options{Level: r.LogLevel, Format: r.LogFormat}
}

// RenderOptions returns coordinator options using logger. Scheduler and
// OnError are left for the caller.
func (r *Resolved) RenderOptions(logger *slog.Logger) render.Options {
	return render.Options{Logger: logger, AuditIdentity: r.AuditIdentity || r.Debug}
}

// RemoteOptions returns remote renderer options stamping the resolved
// protocol version.
func (r *Resolved) RemoteOptions(logger *slog.Logger) remote.Options {
	return remote.Options{Logger: logger, Version: r.ProtocolVersion}
}

func validateProtocol(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("%s: protocol.version %q is not a semantic version", FileName, v)
	}
	if !patch.Compatible(v) {
		return fmt.Errorf("%s: protocol.version %s is incompatible with %s", FileName, v, patch.ProtocolVersion)
	}
	return nil
}

// defaultAppName uses the last element of the go.mod module path in dir,
// falling back to the directory name.
func defaultAppName(dir string) string {
	base := filepath.Base(dir)
	if data, err := os.ReadFile(filepath.Join(dir, "go.mod")); err == nil {
		if path := modfile.ModulePath(data); path != "" {
			prefix, _, ok := module.SplitPathVersion(path)
			if ok {
				parts := strings.Split(prefix, "/")
				base = parts[len(parts)-1]
			}
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "raven_app"
	}
	return base
}
