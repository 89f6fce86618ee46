// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Section names, with the names used by older config files as fallbacks
const (
	SectionPlatform  = "platform"
	SectionMessaging = "messaging"
	SectionAlert     = "alert"
	SectionLog       = "log"

	legacyPlatform  = "wiliot"
	legacyMessaging = "twilio"
)

// Defaults applied when the alert section leaves a field unset
const (
	DefaultMaxDowntime = "1d"
	DefaultMaxOffline  = 5
)

// ConfigError reports a missing or unreadable config file or missing keys
type ConfigError struct {
	Path string
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config: ")
	if e.Path != "" {
		b.WriteString(e.Path + ": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PlatformConfig holds the asset platform credentials
type PlatformConfig struct {
	AccountID string `mapstructure:"account_id"`
	APIKey    string `mapstructure:"api_key"`
	URL       string `mapstructure:"url"`
	PageSize  int    `mapstructure:"page_size"`
}

// Validate reports every missing required key
func (c PlatformConfig) Validate() error {
	return requireKeys(SectionPlatform, map[string]string{
		"account_id": c.AccountID,
		"api_key":    c.APIKey,
		"url":        c.URL,
	})
}

// MessagingConfig holds the SMS provider credentials
type MessagingConfig struct {
	SID    string `mapstructure:"sid"`
	Auth   string `mapstructure:"auth"`
	Number string `mapstructure:"number"`
	URL    string `mapstructure:"url"` // optional API base override
}

// Validate reports every missing required key
func (c MessagingConfig) Validate() error {
	return requireKeys(SectionMessaging, map[string]string{
		"sid":    c.SID,
		"auth":   c.Auth,
		"number": c.Number,
	})
}

// AlertConfig holds defaults for the alert command
type AlertConfig struct {
	MaxDowntime     string        `mapstructure:"max_downtime"`
	To              string        `mapstructure:"to"`
	MaxOffline      int           `mapstructure:"max_offline"`
	AlertHealthy    bool          `mapstructure:"alert_healthy"`
	AlertDir        string        `mapstructure:"alert_dir"`
	OutputFile      string        `mapstructure:"output_file"`
	MaxAssets       int           `mapstructure:"max_assets"`
	Interval        time.Duration `mapstructure:"interval"`
	HistoryDB       string        `mapstructure:"history_db"`
	MetricsTextfile string        `mapstructure:"metrics_textfile"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// Config is the whole file
type Config struct {
	Path      string
	Platform  PlatformConfig
	Messaging MessagingConfig
	Alert     AlertConfig
	Log       LogConfig
}

// ResolvePath returns path if it exists relative to the working directory,
// otherwise the same path under the user's home directory.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", &ConfigError{Msg: "must provide a config file to load configuration"}
	}
	if isFile(path) {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", &ConfigError{Path: path, Msg: "config file not found and home directory unknown", Err: err}
	}
	joined := filepath.Join(home, path)
	if isFile(joined) {
		return joined, nil
	}

	return "", &ConfigError{
		Path: path,
		Msg:  fmt.Sprintf("not found in local directory (%s) or home directory (%s)", path, joined),
	}
}

// LoadSection parses the file at path and returns the mapping under section.
// Returns nil without error when the section is absent.
func LoadSection(path, section string) (map[string]any, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	if !v.IsSet(section) {
		return nil, nil
	}
	return v.GetStringMap(section), nil
}

// LoadPlatformConfig loads the platform section with env overrides.
// Required keys are checked by the client, not here.
func LoadPlatformConfig(path string) (*PlatformConfig, error) {
	v, path, err := resolveAndRead(path)
	if err != nil {
		return nil, err
	}

	var cfg PlatformConfig
	if err := decode(v, path, &cfg, SectionPlatform, legacyPlatform); err != nil {
		return nil, err
	}

	if key := os.Getenv("TWILIOT_PLATFORM_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	return &cfg, nil
}

// LoadMessagingConfig loads the messaging section with env overrides
func LoadMessagingConfig(path string) (*MessagingConfig, error) {
	v, path, err := resolveAndRead(path)
	if err != nil {
		return nil, err
	}

	var cfg MessagingConfig
	if err := decode(v, path, &cfg, SectionMessaging, legacyMessaging); err != nil {
		return nil, err
	}

	if auth := os.Getenv("TWILIOT_MESSAGING_AUTH"); auth != "" {
		cfg.Auth = auth
	}

	return &cfg, nil
}

// LoadAlertConfig loads the alert section and fills defaults
func LoadAlertConfig(path string) (*AlertConfig, error) {
	v, path, err := resolveAndRead(path)
	if err != nil {
		return nil, err
	}

	var cfg AlertConfig
	if err := decode(v, path, &cfg, SectionAlert); err != nil {
		return nil, err
	}
	applyAlertDefaults(&cfg)

	return &cfg, nil
}

// Load reads every section of the file at path
func Load(path string) (*Config, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}

	platform, err := LoadPlatformConfig(resolved)
	if err != nil {
		return nil, err
	}
	messaging, err := LoadMessagingConfig(resolved)
	if err != nil {
		return nil, err
	}
	alert, err := LoadAlertConfig(resolved)
	if err != nil {
		return nil, err
	}

	v, err := read(resolved)
	if err != nil {
		return nil, err
	}
	var logCfg LogConfig
	if err := decode(v, resolved, &logCfg, SectionLog); err != nil {
		return nil, err
	}

	return &Config{
		Path:      resolved,
		Platform:  *platform,
		Messaging: *messaging,
		Alert:     *alert,
		Log:       logCfg,
	}, nil
}

func applyAlertDefaults(cfg *AlertConfig) {
	if cfg.MaxDowntime == "" {
		cfg.MaxDowntime = DefaultMaxDowntime
	}
	if cfg.MaxOffline <= 0 {
		cfg.MaxOffline = DefaultMaxOffline
	}
}

func resolveAndRead(path string) (*viper.Viper, string, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, "", err
	}
	v, err := read(resolved)
	if err != nil {
		return nil, "", err
	}
	return v, resolved, nil
}

// read parses the file; the format follows the extension, TOML when there is none
func read(path string) (*viper.Viper, error) {
	if path == "" {
		return nil, &ConfigError{Msg: "must provide a config file to load configuration"}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{Path: path, Msg: "cannot open config file", Err: err}
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("toml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Path: path, Msg: "failed to parse config file, check the file format", Err: err}
	}
	return v, nil
}

// decode unmarshals the first present section into out
func decode(v *viper.Viper, path string, out any, sections ...string) error {
	for _, name := range sections {
		sub := v.Sub(name)
		if sub == nil {
			continue
		}
		if err := sub.Unmarshal(out); err != nil {
			return &ConfigError{Path: path, Msg: "invalid [" + name + "] section", Err: err}
		}
		return nil
	}
	return nil
}

func requireKeys(section string, values map[string]string) error {
	var missing []string
	for key, val := range values {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &ConfigError{
		Msg: fmt.Sprintf("empty %s configuration, missing %s", section, strings.Join(missing, ", ")),
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsConfigError reports whether err is or wraps a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
