// Package config resolves buildstate settings from defaults, config files and
// command line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/tailscale/hujson"
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrStateDirEmpty      = errors.New("state-dir cannot be empty")
	ErrLogLevelInvalid    = errors.New("invalid log level")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".buildstate.json"

// LogEnv is the environment variable that overrides the configured log level.
const LogEnv = "BUILDSTATE_LOG"

// Config holds all configuration options.
type Config struct {
	StateDir string `json:"state_dir"`
	LogLevel string `json:"log_level,omitempty"`

	// Resolved, not serialized
	EffectiveCwd string  `json:"-"`
	StateDirAbs  string  `json:"-"`
	Sources      Sources `json:"-"`
}

// Sources records which config files contributed to a [Config].
type Sources struct {
	Global  string
	Project string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StateDir: ".gbstate",
		LogLevel: "error",
	}
}

// Input holds the inputs for [Load].
type Input struct {
	WorkDirOverride  string            // -C/--cwd; os.Getwd() when empty
	ConfigPath       string            // -c/--config
	StateDirOverride string            // --state-dir; empty means no override
	LogLevelOverride string            // --log-level; empty means no override
	Env              map[string]string // process environment
}

// Load resolves configuration. Later sources win:
//
//  1. Defaults
//  2. Global config ($XDG_CONFIG_HOME/buildstate/config.json or
//     ~/.config/buildstate/config.json)
//  3. Project config (.buildstate.json in the working directory)
//  4. Explicit config file via -c
//  5. BUILDSTATE_LOG for the log level
//  6. Command line flags
//
// An explicit config file replaces the project config rather than layering on
// top of it.
func Load(in Input) (Config, error) {
	workDir := in.WorkDirOverride
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}

		workDir = wd
	}

	if !filepath.IsAbs(workDir) {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}

		workDir = abs
	}

	cfg := Default()

	global, globalPath, err := loadGlobal(in.Env)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, global)
	cfg.Sources.Global = globalPath

	project, projectPath, err := loadProject(workDir, in.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, project)
	cfg.Sources.Project = projectPath

	if lvl := in.Env[LogEnv]; lvl != "" {
		cfg.LogLevel = lvl
	}

	if in.StateDirOverride != "" {
		cfg.StateDir = in.StateDirOverride
	}

	if in.LogLevelOverride != "" {
		cfg.LogLevel = in.LogLevelOverride
	}

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.StateDir) {
		cfg.StateDirAbs = filepath.Clean(cfg.StateDir)
	} else {
		cfg.StateDirAbs = filepath.Join(workDir, cfg.StateDir)
	}

	return cfg, nil
}

// Level returns the parsed log level.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.ErrorLevel
	}

	return lvl
}

// Format renders the serializable part of cfg as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}

func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "buildstate", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "buildstate", "config.json")
	}

	return ""
}

func loadGlobal(env map[string]string) (Config, string, error) {
	path := globalPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

func loadProject(workDir, configPath string) (Config, string, error) {
	path := filepath.Join(workDir, FileName)
	mustExist := false

	if configPath != "" {
		path = configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		mustExist = true

		_, err := os.Stat(path)
		if err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	}

	cfg, loaded, err := loadFile(path, mustExist)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadFile reads and parses one config file. A missing optional file is not
// an error and reports loaded=false.
func loadFile(path string, mustExist bool) (cfg Config, loaded bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist && errors.Is(err, os.ErrNotExist) {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err = parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

// parse decodes JSONC. A state_dir that is present but empty is rejected here
// because merge cannot tell it apart from an unset field.
func parse(data []byte) (Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(std, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]json.RawMessage

	_ = json.Unmarshal(std, &raw)

	if v, ok := raw["state_dir"]; ok && string(v) == `""` {
		return Config{}, ErrStateDirEmpty
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.StateDir != "" {
		base.StateDir = overlay.StateDir
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	return base
}

func validate(cfg Config) error {
	if cfg.StateDir == "" {
		return ErrStateDirEmpty
	}

	_, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrLogLevelInvalid, cfg.LogLevel)
	}

	return nil
}
