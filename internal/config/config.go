// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for fitchat.
//
// Configuration is read from a TOML file on top of built-in defaults, then
// environment variables are applied and the result is validated.
//
// Configuration file location:
//   - $FITCHAT_HOME/config.toml when FITCHAT_HOME is set
//   - ~/.fitchat/config.toml otherwise
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// DefaultSystemPrompt is the fitness persona used when a request carries no
// system prompt of its own.
const DefaultSystemPrompt = "You are a fitness personal AI assistant. Keep replies short, friendly and helpful. " +
	"If the user writes in Hinglish, reply in Hinglish. Be encouraging and concise."

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete fitchat configuration.
type Config struct {
	// Client is the chat client (TUI and ask) configuration.
	Client ClientConfig `toml:"client" json:"client"`

	// Server is the backend (serve) configuration.
	Server ServerConfig `toml:"server" json:"server"`

	// Assistant is the upstream model configuration used by the backend.
	Assistant AssistantConfig `toml:"assistant" json:"assistant"`

	// UI is the terminal UI configuration.
	UI UIConfig `toml:"ui" json:"ui"`

	// Log is the logging configuration.
	Log LogConfig `toml:"log" json:"log"`
}

// ClientConfig contains chat client settings.
type ClientConfig struct {
	// BackendURL is the base URL of the backend; requests go to {BackendURL}/chat.
	BackendURL string `toml:"backend_url" json:"backend_url"`
	// RequestTimeoutSecs bounds one exchange. 0 means no client timeout.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// ServerConfig contains backend settings.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
	// AllowedOrigins lists CORS origins. "*" allows all.
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
	// RateLimitPerMinute is the per-IP request budget. 0 disables limiting.
	RateLimitPerMinute int `toml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `toml:"max_body_bytes" json:"max_body_bytes"`
	// ShutdownTimeoutSecs bounds graceful shutdown.
	ShutdownTimeoutSecs int `toml:"shutdown_timeout_secs" json:"shutdown_timeout_secs"`
}

// AssistantConfig contains upstream model settings.
type AssistantConfig struct {
	// APIKey is the OpenAI API key. Usually supplied through OPENAI_API_KEY.
	APIKey string `toml:"api_key" json:"api_key"`
	// BaseURL overrides the OpenAI API base URL for compatible providers.
	BaseURL      string  `toml:"base_url" json:"base_url"`
	Model        string  `toml:"model" json:"model"`
	MaxTokens    int     `toml:"max_tokens" json:"max_tokens"`
	Temperature  float32 `toml:"temperature" json:"temperature"`
	SystemPrompt string  `toml:"system_prompt" json:"system_prompt"`
	// TimeoutSecs bounds one upstream request.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme          string `toml:"theme" json:"theme"`
	ShowTimestamps bool   `toml:"show_timestamps" json:"show_timestamps"`
	// Markdown renders assistant replies as markdown.
	Markdown bool `toml:"markdown" json:"markdown"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level"`
	// Format is text or json.
	Format string `toml:"format" json:"format"`
	// File is the log file. Empty means the default file for the TUI and
	// stderr only for other commands.
	File string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			BackendURL:         "http://localhost:5000",
			RequestTimeoutSecs: 0,
		},
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                5000,
			AllowedOrigins:      []string{"*"},
			RateLimitPerMinute:  60,
			MaxBodyBytes:        1 << 20,
			ShutdownTimeoutSecs: 10,
		},
		Assistant: AssistantConfig{
			Model:        "gpt-3.5-turbo",
			MaxTokens:    600,
			Temperature:  1.5,
			SystemPrompt: DefaultSystemPrompt,
			TimeoutSecs:  60,
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the fitchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("FITCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".fitchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultLogFile returns the log file used by the TUI when none is configured.
func DefaultLogFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fitchat.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the configuration from the default path.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads the configuration from path. A missing file is not an
// error: defaults are used. Environment overrides are applied before
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "failed to load config from %s", path)
		}
	} else if !os.IsNotExist(statErr) {
		return nil, errors.Wrapf(statErr, "failed to stat config %s", path)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path on top of cfg. Keys absent from the
// file keep their current values. Unknown keys are rejected.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to decode TOML file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// SetDefaults fills empty values that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Client.BackendURL == "" {
		c.Client.BackendURL = defaults.Client.BackendURL
	}
	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}
	if c.Server.ShutdownTimeoutSecs == 0 {
		c.Server.ShutdownTimeoutSecs = defaults.Server.ShutdownTimeoutSecs
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = defaults.Assistant.Model
	}
	if c.Assistant.MaxTokens == 0 {
		c.Assistant.MaxTokens = defaults.Assistant.MaxTokens
	}
	if strings.TrimSpace(c.Assistant.SystemPrompt) == "" {
		c.Assistant.SystemPrompt = defaults.Assistant.SystemPrompt
	}
	if c.Assistant.TimeoutSecs == 0 {
		c.Assistant.TimeoutSecs = defaults.Assistant.TimeoutSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path atomically with mode 0600.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# fitchat configuration file\n")
	buf.WriteString("# Environment variables (FITCHAT_BACKEND_URL, OPENAI_API_KEY, PORT, ...) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	return writeConfigFile(path, buf.Bytes())
}

// writeConfigFile replaces path with data through a synced temp file in the
// same directory. The file may hold an API key, so it is owner-only.
func writeConfigFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return errors.Wrap(err, "failed to create temp config")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0600); err != nil {
		return errors.Wrap(err, "failed to restrict config permissions")
	}
	if _, err = tmp.Write(data); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync config file")
	}
	// Closed before the rename; Windows cannot rename an open file.
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close config file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
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
// field is invalid.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Client
	if err := validateHTTPURL(c.Client.BackendURL); err != nil {
		add("client.backend_url", "%v", err)
	}
	if c.Client.RequestTimeoutSecs < 0 {
		add("client.request_timeout_secs", "must be >= 0, got %d", c.Client.RequestTimeoutSecs)
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		add("server.rate_limit_per_minute", "must be >= 0, got %d", c.Server.RateLimitPerMinute)
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes", "must be > 0, got %d", c.Server.MaxBodyBytes)
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if err := validateHTTPURL(origin); err != nil {
			add("server.allowed_origins", "invalid origin %q: %v", origin, err)
		}
	}

	// Assistant
	if c.Assistant.BaseURL != "" {
		if err := validateHTTPURL(c.Assistant.BaseURL); err != nil {
			add("assistant.base_url", "%v", err)
		}
	}
	if c.Assistant.MaxTokens < 1 {
		add("assistant.max_tokens", "must be > 0, got %d", c.Assistant.MaxTokens)
	}
	if c.Assistant.Temperature < 0 || c.Assistant.Temperature > 2 {
		add("assistant.temperature", "must be between 0 and 2, got %g", c.Assistant.Temperature)
	}
	if c.Assistant.TimeoutSecs < 0 {
		add("assistant.timeout_secs", "must be >= 0, got %d", c.Assistant.TimeoutSecs)
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: text, json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RequireAPIKey reports an error when no upstream API key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Assistant.APIKey) == "" {
		return ValidationError{
			Field:   "assistant.api_key",
			Message: "OPENAI_API_KEY not found in environment; set it or add api_key to the [assistant] section",
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - FITCHAT_BACKEND_URL: overrides client.backend_url
//   - PORT: overrides server.port
//   - OPENAI_API_KEY: overrides assistant.api_key
//   - OPENAI_BASE_URL: overrides assistant.base_url
//   - FITCHAT_MODEL: overrides assistant.model
//   - FITCHAT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if backend := os.Getenv("FITCHAT_BACKEND_URL"); backend != "" {
		c.Client.BackendURL = backend
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		} else {
			// Leave an out-of-range value so Validate reports it.
			c.Server.Port = -1
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Assistant.APIKey = key
	}

	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		c.Assistant.BaseURL = base
	}

	if model := os.Getenv("FITCHAT_MODEL"); model != "" {
		c.Assistant.Model = model
	}

	if level := os.Getenv("FITCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// GET HELPER (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value by its TOML key path, e.g.
// "client.backend_url".
func (c *Config) Get(key string) (any, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTOMLTag(v, part)
		if !ok {
			return nil, errors.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Slice {
				out := reflect.MakeSlice(field.Type(), field.Len(), field.Len())
				reflect.Copy(out, field)
				return out.Interface(), nil
			}
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, errors.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, errors.Errorf("invalid key: %s", key)
}

func fieldByTOMLTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys returns every leaf key path, in declaration order.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
			if tag == "" {
				continue
			}
			if t.Field(i).Type.Kind() == reflect.Struct {
				walk(t.Field(i).Type, prefix+tag+".")
				continue
			}
			keys = append(keys, prefix+tag)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &clone
}

// Redacted returns a copy with secrets replaced.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Assistant.APIKey != "" {
		safe.Assistant.APIKey = "[REDACTED]"
	}
	return safe
}

// String returns the redacted config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// TOML returns the redacted config encoded as TOML.
func (c *Config) TOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c.Redacted()); err != nil {
		return "", errors.Wrap(err, "failed to encode config")
	}
	return buf.String(), nil
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Global returns the process configuration set by SetGlobal, or defaults when
// none has been set.
func Global() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		globalConfig = Default()
	}
	return globalConfig
}

// SetGlobal sets the process configuration. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the process configuration.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
}
