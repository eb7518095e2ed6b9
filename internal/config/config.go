// Package config loads tasktree's layered JSONC configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tailscale/hujson"
)

// Backends.
const (
	BackendTaskwarrior = "taskwarrior"
	BackendSQLite      = "sqlite"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".tasktree.json"

// Config errors.
var (
	ErrFileNotFound   = errors.New("config file not found")
	ErrFileRead       = errors.New("cannot read config file")
	ErrInvalid        = errors.New("invalid config file")
	ErrInvalidBackend = errors.New("invalid backend (must be taskwarrior or sqlite)")
	ErrEmptyValue     = errors.New("value cannot be empty")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Backend     string            `json:"backend"`
	TaskBin     string            `json:"task_bin"`
	TaskRC      map[string]string `json:"taskrc,omitempty"`
	DBPath      string            `json:"db_path"`
	Filter      string            `json:"filter,omitempty"`
	HistoryFile string            `json:"history_file,omitempty"`

	// Resolved (computed, not serialized)
	EffectiveCwd string `json:"-"`
	DBPathAbs    string `json:"-"`

	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // path to global config if loaded
	Project string // path to project or explicit config if loaded
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Backend: BackendTaskwarrior,
		TaskBin: "task",
		DBPath:  filepath.Join(".tasktree", "tasks.db"),
	}
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd; os.Getwd() when empty
	ConfigPath      string            // -c/--config
	BackendOverride string            // --backend
	DBPathOverride  string            // --db
	Env             map[string]string // environment
}

// Load resolves the configuration. Precedence, highest last:
//  1. defaults
//  2. global config ($XDG_CONFIG_HOME/tasktree/config.json or ~/.config/tasktree/config.json)
//  3. project config (.tasktree.json in the working directory) or the
//     explicit file given with -c, which must exist
//  4. CLI overrides
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	globalPath := globalConfigPath(input.Env)
	if globalPath != "" {
		globalCfg, loaded, err := loadFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, globalCfg)
			cfg.Sources.Global = globalPath
		}
	}

	projectPath, mustExist := filepath.Join(workDir, FileName), false
	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}

	projectCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, projectCfg)
		cfg.Sources.Project = projectPath
	}

	if input.BackendOverride != "" {
		cfg.Backend = input.BackendOverride
	}

	if input.DBPathOverride != "" {
		cfg.DBPath = input.DBPathOverride
	}

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir

	cfg.DBPathAbs = cfg.DBPath
	if !filepath.IsAbs(cfg.DBPathAbs) {
		cfg.DBPathAbs = filepath.Join(workDir, cfg.DBPathAbs)
	}

	return cfg, nil
}

// globalConfigPath returns the global config location, or "" when no home
// directory is known.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "tasktree", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "tasktree", "config.json")
	}

	return ""
}

// loadFile loads one config file. A missing file is not an error unless
// mustExist is set.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

// explicitKeys are the string keys that may not be set to "".
var explicitKeys = []string{"backend", "task_bin", "db_path"} //nolint:gochecknoglobals // package-level constant

// Parse decodes a JSONC document. Keys that must not be empty are rejected
// when explicitly set to "".
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	for _, key := range explicitKeys {
		if val, exists := raw[key]; exists {
			if str, ok := val.(string); ok && strings.TrimSpace(str) == "" {
				return Config{}, fmt.Errorf("%w: %s", ErrEmptyValue, key)
			}
		}
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Backend != "" {
		base.Backend = overlay.Backend
	}

	if overlay.TaskBin != "" {
		base.TaskBin = overlay.TaskBin
	}

	if len(overlay.TaskRC) > 0 {
		rc := maps.Clone(base.TaskRC)
		if rc == nil {
			rc = make(map[string]string, len(overlay.TaskRC))
		}

		maps.Copy(rc, overlay.TaskRC)
		base.TaskRC = rc
	}

	if overlay.DBPath != "" {
		base.DBPath = overlay.DBPath
	}

	if overlay.Filter != "" {
		base.Filter = overlay.Filter
	}

	if overlay.HistoryFile != "" {
		base.HistoryFile = overlay.HistoryFile
	}

	return base
}

func validate(cfg Config) error {
	if cfg.Backend != BackendTaskwarrior && cfg.Backend != BackendSQLite {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, cfg.Backend)
	}

	for key := range cfg.TaskRC {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, " =") {
			return fmt.Errorf("%w: invalid taskrc key %q", ErrInvalid, key)
		}
	}

	return nil
}

// Format renders cfg as key=value lines, sorted taskrc entries last.
func Format(cfg Config) string {
	var b strings.Builder

	b.WriteString("effective_cwd=" + cfg.EffectiveCwd + "\n")
	b.WriteString("backend=" + cfg.Backend + "\n")

	switch cfg.Backend {
	case BackendSQLite:
		b.WriteString("db_path=" + cfg.DBPathAbs + "\n")
	default:
		b.WriteString("task_bin=" + cfg.TaskBin + "\n")
	}

	if cfg.Filter != "" {
		b.WriteString("filter=" + cfg.Filter + "\n")
	}

	if cfg.HistoryFile != "" {
		b.WriteString("history_file=" + cfg.HistoryFile + "\n")
	}

	for _, key := range slices.Sorted(maps.Keys(cfg.TaskRC)) {
		b.WriteString("taskrc." + key + "=" + cfg.TaskRC[key] + "\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}
