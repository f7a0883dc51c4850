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
)

const (
	KeyLanguage        = "language"
	KeyCloseBehavior   = "close-behavior"
	KeyLaunchAtStartup = "launch-at-startup"

	KeyManifestURL       = "manifest.url"
	KeyManifestPublicKey = "manifest.public-key"
	KeyManifestMaxAge    = "manifest.max-age"

	KeyGameDir = "game.dir"
	KeyGameExe = "game.exe"

	KeyCacheDir = "cache.dir"

	KeyPushURL          = "push.url"
	KeyPushPollInterval = "push.poll-interval"

	KeyTheme = "ui.theme"

	KeyDebug = "debug"
)

const (
	DefaultLanguage     = "en"
	DefaultGameExe      = "game.exe"
	DefaultTheme        = "tokyonight"
	DefaultManifestAge  = 10 * time.Minute
	DefaultPollInterval = 10 * time.Minute
	envPrefix           = "GL"
	configDirName       = ".launcher"
	configFileName      = "config.yaml"
)

// CloseBehavior controls what closing the launcher window does.
type CloseBehavior string

const (
	CloseMinimizeToTray CloseBehavior = "MinimizeToTray"
	CloseExit           CloseBehavior = "Exit"
)

// SupportedLanguages lists the language codes the launcher ships strings for.
var SupportedLanguages = []string{"en", "vi", "jp", "zh"}

// LauncherConfig is the user-editable part of the configuration.
type LauncherConfig struct {
	Language        string
	CloseBehavior   CloseBehavior
	LaunchAtStartup bool
}

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

	// Paths resolved by the last successful Initialize; used by SaveLauncherConfig.
	resolvedUserPath    string
	resolvedProjectPath string
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
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

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set updates a configuration key at runtime, initializing on demand.
func Set(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.Set(key, value)
	return nil
}

// DataDir returns the launcher's per-user directory (~/.launcher).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// GameDir returns the install directory, defaulting to <data dir>/game.
func GameDir() (string, error) {
	if dir := strings.TrimSpace(GetString(KeyGameDir)); dir != "" {
		return dir, nil
	}
	base, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "game"), nil
}

// CacheDir returns the directory holding the manifest cache database,
// defaulting to <data dir>/cache.
func CacheDir() (string, error) {
	if dir := strings.TrimSpace(GetString(KeyCacheDir)); dir != "" {
		return dir, nil
	}
	base, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "cache"), nil
}

// NormalizeLanguage returns lang if supported, otherwise DefaultLanguage.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, supported := range SupportedLanguages {
		if lang == supported {
			return lang
		}
	}
	return DefaultLanguage
}

// NormalizeCloseBehavior accepts the two known values case-insensitively and
// falls back to MinimizeToTray.
func NormalizeCloseBehavior(value string) CloseBehavior {
	if strings.EqualFold(strings.TrimSpace(value), string(CloseExit)) {
		return CloseExit
	}
	return CloseMinimizeToTray
}

// LoadLauncherConfig reads the user-editable settings.
func LoadLauncherConfig() (LauncherConfig, error) {
	v, err := getViper()
	if err != nil {
		return LauncherConfig{}, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	return LauncherConfig{
		Language:        NormalizeLanguage(v.GetString(KeyLanguage)),
		CloseBehavior:   NormalizeCloseBehavior(v.GetString(KeyCloseBehavior)),
		LaunchAtStartup: v.GetBool(KeyLaunchAtStartup),
	}, nil
}

// SaveLauncherConfig persists cfg to the project config if one was found,
// otherwise to the user config (~/.launcher/config.yaml). Other keys in the
// target file are preserved. The in-memory configuration is updated so a
// following LoadLauncherConfig returns what was written.
func SaveLauncherConfig(cfg LauncherConfig) error {
	if err := Initialize(); err != nil {
		return err
	}
	cfg.Language = NormalizeLanguage(cfg.Language)
	cfg.CloseBehavior = NormalizeCloseBehavior(string(cfg.CloseBehavior))

	targetPath, err := findWritableConfigPath()
	if err != nil {
		return fmt.Errorf("find config path: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(targetPath)
	_ = v.ReadInConfig() // missing file is fine

	v.Set(KeyLanguage, cfg.Language)
	v.Set(KeyCloseBehavior, string(cfg.CloseBehavior))
	v.Set(KeyLaunchAtStartup, cfg.LaunchAtStartup)

	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(targetPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	if configInst != nil {
		configInst.Set(KeyLanguage, cfg.Language)
		configInst.Set(KeyCloseBehavior, string(cfg.CloseBehavior))
		configInst.Set(KeyLaunchAtStartup, cfg.LaunchAtStartup)
	}
	return nil
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
		path, err := defaultUserConfigPath()
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
	v.SetConfigType("yaml")
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
	resolvedUserPath = userConfigPath
	resolvedProjectPath = projectConfigPath
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
	//nolint:gosec // G304: Config loader intentionally reads user and project config files
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

func defaultUserConfigPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, configDirName, configFileName)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// WritablePath returns the file SaveLauncherConfig writes to.
func WritablePath() (string, error) {
	if err := Initialize(); err != nil {
		return "", err
	}
	return findWritableConfigPath()
}

// ReadLauncherConfigFile reads the user-editable settings from a single file,
// bypassing the merged configuration. A missing file yields the defaults.
func ReadLauncherConfigFile(path string) (LauncherConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := mergeConfigFile(v, path); err != nil {
		return LauncherConfig{}, err
	}
	return LauncherConfig{
		Language:        NormalizeLanguage(v.GetString(KeyLanguage)),
		CloseBehavior:   NormalizeCloseBehavior(v.GetString(KeyCloseBehavior)),
		LaunchAtStartup: v.GetBool(KeyLaunchAtStartup),
	}, nil
}

// findWritableConfigPath returns the project config path when one was loaded,
// otherwise the user config path.
func findWritableConfigPath() (string, error) {
	configMu.RLock()
	project, user := resolvedProjectPath, resolvedUserPath
	configMu.RUnlock()
	if project != "" {
		return project, nil
	}
	if user != "" {
		return user, nil
	}
	return defaultUserConfigPath()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLanguage, DefaultLanguage)
	v.SetDefault(KeyCloseBehavior, string(CloseMinimizeToTray))
	v.SetDefault(KeyLaunchAtStartup, false)
	v.SetDefault(KeyManifestURL, "")
	v.SetDefault(KeyManifestPublicKey, "")
	v.SetDefault(KeyManifestMaxAge, DefaultManifestAge)
	v.SetDefault(KeyGameDir, "")
	v.SetDefault(KeyGameExe, DefaultGameExe)
	v.SetDefault(KeyCacheDir, "")
	v.SetDefault(KeyPushURL, "")
	v.SetDefault(KeyPushPollInterval, DefaultPollInterval)
	v.SetDefault(KeyTheme, DefaultTheme)
	v.SetDefault(KeyDebug, false)
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
	resolvedUserPath = ""
	resolvedProjectPath = ""
}

// ResetForTesting clears package state for tests in other packages and
// initializes against an empty temp directory. Returns a cleanup function.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, configFileName)))
	return reset
}
