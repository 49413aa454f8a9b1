// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/chatly-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatly configuration.
type Config struct {
	Backend BackendConfig `toml:"backend" yaml:"backend"`
	Chat    ChatConfig    `toml:"chat" yaml:"chat"`
	Nav     NavConfig     `toml:"nav" yaml:"nav"`
	Auth    AuthConfig    `toml:"auth" yaml:"auth"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	UI      UIConfig      `toml:"ui" yaml:"ui"`

	DevServer DevServerConfig `toml:"devserver" yaml:"devserver"`
}

// BackendConfig locates the remote chat API.
type BackendConfig struct {
	// URL is the base URL serving /upload_docs, /query_rag and /history*.
	URL string `toml:"url" yaml:"url"`

	// TimeoutSeconds bounds each HTTP request. 0 means no client timeout.
	TimeoutSeconds int `toml:"timeout_seconds" yaml:"timeout_seconds"`

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64 `toml:"max_response_bytes" yaml:"max_response_bytes"`
}

// ChatConfig controls the submission pipeline.
type ChatConfig struct {
	// UploadEnabled allows attaching documents to a submission.
	UploadEnabled bool `toml:"upload_enabled" yaml:"upload_enabled"`

	// TypewriterSpeedMs is the delay between revealed characters.
	TypewriterSpeedMs int `toml:"typewriter_speed_ms" yaml:"typewriter_speed_ms"`
}

// NavConfig controls screen transitions.
type NavConfig struct {
	// LoadingDwellMs is how long the loading screen stays up after Start. 0 skips it.
	LoadingDwellMs int `toml:"loading_dwell_ms" yaml:"loading_dwell_ms"`
}

// AuthConfig selects and configures the authentication provider.
type AuthConfig struct {
	// Provider is "local" (sqlite accounts on this machine), "remote", or
	// "memory" (throwaway accounts for demos).
	Provider string `toml:"provider" yaml:"provider"`

	// AllowGuest enables the "continue as guest" action on the sign-in overlay.
	AllowGuest bool `toml:"allow_guest" yaml:"allow_guest"`

	Local  LocalAuthConfig  `toml:"local" yaml:"local"`
	Remote RemoteAuthConfig `toml:"remote" yaml:"remote"`
}

// LocalAuthConfig configures the on-machine account store.
type LocalAuthConfig struct {
	DBPath    string `toml:"db_path" yaml:"db_path"`
	TokenPath string `toml:"token_path" yaml:"token_path"`

	// TokenSecret signs remembered sessions. Generated and stored next to
	// the database when empty.
	TokenSecret string `toml:"token_secret" yaml:"token_secret"`

	TokenTTLHours     int `toml:"token_ttl_hours" yaml:"token_ttl_hours"`
	AttemptsPerMinute int `toml:"attempts_per_minute" yaml:"attempts_per_minute"`
}

// RemoteAuthConfig configures the hosted identity provider.
type RemoteAuthConfig struct {
	BaseURL string `toml:"base_url" yaml:"base_url"`
	APIKey  string `toml:"api_key" yaml:"api_key"`
	JWKSURL string `toml:"jwks_url" yaml:"jwks_url"`
}

// LoggingConfig configures the rotating log file.
type LoggingConfig struct {
	Path  string `toml:"path" yaml:"path"`
	Level string `toml:"level" yaml:"level"`

	// Console additionally logs to stderr. Never enable for the TUI.
	Console bool `toml:"console" yaml:"console"`
}

// UIConfig configures the terminal adapter.
type UIConfig struct {
	// Theme forces "dark" or "light". Empty uses the saved setting, then
	// the terminal background.
	Theme        string `toml:"theme" yaml:"theme"`
	SettingsPath string `toml:"settings_path" yaml:"settings_path"`
}

// DevServerConfig configures the local development backend.
type DevServerConfig struct {
	Addr    string `toml:"addr" yaml:"addr"`
	DataDir string `toml:"data_dir" yaml:"data_dir"`

	// AllowOrigins lists browser origins accepted by CORS.
	AllowOrigins []string `toml:"allow_origins" yaml:"allow_origins"`
}

// Default returns a config with built-in defaults. Paths are left empty and
// resolved by Load.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:              "http://localhost:5001",
			TimeoutSeconds:   0,
			MaxResponseBytes: 10 * 1024 * 1024,
		},
		Chat: ChatConfig{
			UploadEnabled:     true,
			TypewriterSpeedMs: 12,
		},
		Nav: NavConfig{
			LoadingDwellMs: 2000,
		},
		Auth: AuthConfig{
			Provider:   "local",
			AllowGuest: false,
			Local: LocalAuthConfig{
				TokenTTLHours:     24 * 14,
				AttemptsPerMinute: 5,
			},
			Remote: RemoteAuthConfig{
				BaseURL: "https://identitytoolkit.googleapis.com/v1",
				JWKSURL: "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		DevServer: DevServerConfig{
			Addr:         "127.0.0.1:5001",
			AllowOrigins: []string{"http://localhost:5001", "http://127.0.0.1:5001"},
		},
	}
}

// Convenience accessors for millisecond fields.

// TypewriterSpeed returns the per-character reveal delay.
func (c ChatConfig) TypewriterSpeed() time.Duration {
	return time.Duration(c.TypewriterSpeedMs) * time.Millisecond
}

// LoadingDwell returns the loading screen dwell.
func (c NavConfig) LoadingDwell() time.Duration {
	return time.Duration(c.LoadingDwellMs) * time.Millisecond
}

// Timeout returns the HTTP client timeout (0 for none).
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatly configuration directory path.
func ConfigDir() (string, error) {
	return util.HomeDir()
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.chatly. Tries TOML first, then YAML, and
// falls back to defaults. The .env file and environment overrides are applied
// last.
func Load() (*Config, error) {
	cfg := Default()

	for _, candidate := range []func() (string, error){ConfigPathTOML, ConfigPathYAML} {
		path, err := candidate()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		if err := decodeFile(cfg, path); err != nil {
			return nil, err
		}
		break
	}

	return finish(cfg)
}

// LoadFromPath loads configuration from an explicit file. The format is
// chosen by extension; anything that is not .yaml/.yml is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, err
	}
	return finish(cfg)
}

func decodeFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read YAML config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML config %s: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to decode TOML config %s: %w", path, err)
		}
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	LoadDotEnv()
	cfg.ApplyEnvOverrides()
	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Variables already set win. Missing files are not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// fillPaths resolves empty file locations under ~/.chatly.
func (c *Config) fillPaths() error {
	if c.Auth.Local.DBPath != "" && c.Auth.Local.TokenPath != "" &&
		c.Logging.Path != "" && c.UI.SettingsPath != "" && c.DevServer.DataDir != "" {
		return nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Auth.Local.DBPath == "" {
		c.Auth.Local.DBPath = filepath.Join(dir, "accounts.db")
	}
	if c.Auth.Local.TokenPath == "" {
		c.Auth.Local.TokenPath = filepath.Join(dir, "session.token")
	}
	if c.Logging.Path == "" {
		c.Logging.Path = filepath.Join(dir, "logs", "chatly.log")
	}
	if c.UI.SettingsPath == "" {
		c.UI.SettingsPath = filepath.Join(dir, "settings.json")
	}
	if c.DevServer.DataDir == "" {
		c.DevServer.DataDir = filepath.Join(dir, "devserver")
	}
	return nil
}

// =============================================================================
// SAVE
// =============================================================================

// EncodeTOML renders the config as TOML.
func (c *Config) EncodeTOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.String(), nil
}

// SaveTOML writes the config to path with owner-only permissions.
// SECURITY: the file may hold an API key or token secret.
func SaveTOML(cfg *Config, path string) error {
	data, err := cfg.EncodeTOML()
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, []byte(data), 0600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns ValidateErrors when any
// field is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Backend.URL),
		})
	}
	if c.Backend.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{Field: "backend.timeout_seconds", Message: "must not be negative"})
	}
	if c.Backend.MaxResponseBytes <= 0 {
		errs = append(errs, ValidationError{Field: "backend.max_response_bytes", Message: "must be positive"})
	}

	if c.Chat.TypewriterSpeedMs < 0 || c.Chat.TypewriterSpeedMs > 1000 {
		errs = append(errs, ValidationError{Field: "chat.typewriter_speed_ms", Message: "must be between 0 and 1000"})
	}
	if c.Nav.LoadingDwellMs < 0 || c.Nav.LoadingDwellMs > 60000 {
		errs = append(errs, ValidationError{Field: "nav.loading_dwell_ms", Message: "must be between 0 and 60000"})
	}

	switch strings.ToLower(c.Auth.Provider) {
	case "local":
		if c.Auth.Local.AttemptsPerMinute <= 0 {
			errs = append(errs, ValidationError{Field: "auth.local.attempts_per_minute", Message: "must be positive"})
		}
		if c.Auth.Local.TokenTTLHours < 0 {
			errs = append(errs, ValidationError{Field: "auth.local.token_ttl_hours", Message: "must not be negative"})
		}
	case "remote":
		if c.Auth.Remote.APIKey == "" {
			errs = append(errs, ValidationError{Field: "auth.remote.api_key", Message: "required for the remote provider"})
		}
		if c.Auth.Remote.BaseURL == "" {
			errs = append(errs, ValidationError{Field: "auth.remote.base_url", Message: "required for the remote provider"})
		}
	case "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "auth.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: local, remote, memory", c.Auth.Provider),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	switch c.UI.Theme {
	case "", "dark", "light":
	default:
		errs = append(errs, ValidationError{Field: "ui.theme", Message: "must be dark or light"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies CHATLY_* environment variables:
//   - CHATLY_BACKEND_URL: overrides backend.url
//   - CHATLY_BACKEND_TIMEOUT: overrides backend.timeout_seconds
//   - CHATLY_UPLOAD_ENABLED: overrides chat.upload_enabled
//   - CHATLY_TYPEWRITER_SPEED_MS: overrides chat.typewriter_speed_ms
//   - CHATLY_LOADING_DWELL_MS: overrides nav.loading_dwell_ms
//   - CHATLY_AUTH_PROVIDER: overrides auth.provider
//   - CHATLY_ALLOW_GUEST: overrides auth.allow_guest
//   - CHATLY_AUTH_API_KEY: overrides auth.remote.api_key
//   - CHATLY_AUTH_URL: overrides auth.remote.base_url
//   - CHATLY_JWKS_URL: overrides auth.remote.jwks_url
//   - CHATLY_TOKEN_SECRET: overrides auth.local.token_secret
//   - CHATLY_LOG_LEVEL, CHATLY_LOG_PATH: override logging
//   - CHATLY_THEME: overrides ui.theme
//   - CHATLY_DEVSERVER_ADDR: overrides devserver.addr
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATLY_BACKEND_URL"); v != "" {
		c.Backend.URL = strings.TrimRight(v, "/")
	}
	if v, ok := envInt("CHATLY_BACKEND_TIMEOUT"); ok {
		c.Backend.TimeoutSeconds = v
	}
	if v, ok := envBool("CHATLY_UPLOAD_ENABLED"); ok {
		c.Chat.UploadEnabled = v
	}
	if v, ok := envInt("CHATLY_TYPEWRITER_SPEED_MS"); ok {
		c.Chat.TypewriterSpeedMs = v
	}
	if v, ok := envInt("CHATLY_LOADING_DWELL_MS"); ok {
		c.Nav.LoadingDwellMs = v
	}
	if v := os.Getenv("CHATLY_AUTH_PROVIDER"); v != "" {
		c.Auth.Provider = strings.ToLower(v)
	}
	if v, ok := envBool("CHATLY_ALLOW_GUEST"); ok {
		c.Auth.AllowGuest = v
	}
	if v := os.Getenv("CHATLY_AUTH_API_KEY"); v != "" {
		c.Auth.Remote.APIKey = v
	}
	if v := os.Getenv("CHATLY_AUTH_URL"); v != "" {
		c.Auth.Remote.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("CHATLY_JWKS_URL"); v != "" {
		c.Auth.Remote.JWKSURL = v
	}
	if v := os.Getenv("CHATLY_TOKEN_SECRET"); v != "" {
		c.Auth.Local.TokenSecret = v
	}
	if v := os.Getenv("CHATLY_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CHATLY_LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
	if v := os.Getenv("CHATLY_THEME"); v != "" {
		c.UI.Theme = strings.ToLower(v)
	}
	if v := os.Getenv("CHATLY_DEVSERVER_ADDR"); v != "" {
		c.DevServer.Addr = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. A config that fails to load or validate falls back to defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			_ = cfg.fillPaths()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
