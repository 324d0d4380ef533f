// Package config loads flakepick settings with the precedence:
// defaults < user config < project config < environment variables < overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"flakepick/internal/catalog"
)

const (
	KeyHalfLife       = "half-life"
	KeyBonus          = "bonus"
	KeyBatchSize      = "batch-size"
	KeyCase           = "case"
	KeyNormalize      = "normalize"
	KeyStoreNamespace = "store-namespace"
	KeyFuzzyWeight    = "fuzzy-weight"
	KeyRecencyWeight  = "recency-weight"
	KeyActionTimeout  = "action-timeout"
	KeyShowTimeout    = "show-timeout"
	KeyInline         = "inline"
	KeyFullscreen     = "fullscreen"
)

// Defaults for the scoring pipeline.
const (
	DefaultHalfLife      = 720 * time.Hour
	DefaultBonus         = 15.0
	DefaultBatchSize     = 1000
	DefaultNamespace     = "flakepick"
	DefaultFuzzyWeight   = 1.0
	DefaultRecencyWeight = 10.0
	DefaultActionTimeout = 60 * time.Second
	DefaultShowTimeout   = 30 * time.Second
	DefaultInline        = 12

	envPrefix = "FLAKEPICK"
)

// defaultSourceURI is the catalog used when no sources are configured.
const defaultSourceURI = "github:NixOS/templates"

// projectConfigName is looked up from the working directory upward, so
// a repository can pin its own template sources.
const projectConfigName = ".flakepick.toml"

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error
)

// Initialize loads configuration once. Later calls return the first
// call's result.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetInt fetches an integer configuration value, initializing on demand.
func GetInt(key string) int {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 fetches a float configuration value, initializing on demand.
func GetFloat64(key string) float64 {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetBool fetches a boolean configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// Sources returns the configured template sources, or the NixOS
// templates flake when none are configured. Entries without a URI are
// dropped.
func Sources() ([]catalog.Source, error) {
	v, err := getViper()
	if err != nil {
		return nil, err
	}

	var sources []catalog.Source
	if err := v.UnmarshalKey("source", &sources); err != nil {
		return nil, fmt.Errorf("parse template sources: %w", err)
	}

	valid := make([]catalog.Source, 0, len(sources))
	for _, s := range sources {
		if strings.TrimSpace(s.URI) != "" {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return []catalog.Source{{URI: defaultSourceURI}}, nil
	}
	return valid, nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// DefaultConfigPath is the user config file, config.toml under the
// platform config directory.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine config directory: %w", err)
	}
	return filepath.Join(dir, "flakepick", "config.toml"), nil
}

// DataDir returns the directory holding the recency store.
func DataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "flakepick"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, ".local", "share", "flakepick"), nil
}

// StateDir returns the directory holding session logs.
func StateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "flakepick"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, ".local", "state", "flakepick"), nil
}

// CacheDir returns the directory holding the catalog cache.
func CacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("determine cache directory: %w", err)
	}
	return filepath.Join(dir, "flakepick"), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, projectConfigName)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyHalfLife, DefaultHalfLife)
	v.SetDefault(KeyBonus, DefaultBonus)
	v.SetDefault(KeyBatchSize, DefaultBatchSize)
	v.SetDefault(KeyCase, "smart")
	v.SetDefault(KeyNormalize, "smart")
	v.SetDefault(KeyStoreNamespace, DefaultNamespace)
	v.SetDefault(KeyFuzzyWeight, DefaultFuzzyWeight)
	v.SetDefault(KeyRecencyWeight, DefaultRecencyWeight)
	v.SetDefault(KeyActionTimeout, DefaultActionTimeout)
	v.SetDefault(KeyShowTimeout, DefaultShowTimeout)
	v.SetDefault(KeyInline, DefaultInline)
	v.SetDefault(KeyFullscreen, false)
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
}
