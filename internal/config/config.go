// Package config loads service configuration from flags, environment
// variables prefixed with TELEHEALTH_, and an optional TOML or YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TELEHEALTH"

// ErrNotConfigured is returned by Validate when conferencing cannot work
// with the loaded values.
var ErrNotConfigured = errors.New("telehealth not configured")

// Config captures the configuration values of the telehealth service.
type Config struct {
	HTTPAddr           string        `mapstructure:"http_addr"`
	SQLiteDSN          string        `mapstructure:"sqlite_dsn"`
	StoreTimeout       time.Duration `mapstructure:"store_timeout"`
	LogLevel           string        `mapstructure:"log_level"`
	Timezone           string        `mapstructure:"timezone"`
	IdentitySecret     string        `mapstructure:"identity_secret"`
	SecretKey          string        `mapstructure:"secret_key"`
	DirectoryCacheSize int           `mapstructure:"directory_cache_size"`
	DirectoryCacheTTL  time.Duration `mapstructure:"directory_cache_ttl"`
	Jitsi              JitsiConfig   `mapstructure:"jitsi"`

	// Location is Timezone resolved at load time.
	Location *time.Location `mapstructure:"-"`
}

// JitsiConfig holds the conferencing settings.
type JitsiConfig struct {
	Domain               string        `mapstructure:"domain"`
	RoomPrefix           string        `mapstructure:"room_prefix"`
	JWTEnabled           bool          `mapstructure:"jwt_enabled"`
	JWTAppID             string        `mapstructure:"jwt_app_id"`
	JWTAppSecret         string        `mapstructure:"jwt_app_secret"`
	JWTAppSecretSealed   string        `mapstructure:"jwt_app_secret_sealed"`
	JWTTTL               time.Duration `mapstructure:"jwt_ttl"`
	EnableLobby          bool          `mapstructure:"enable_lobby"`
	EnableChat           bool          `mapstructure:"enable_chat"`
	EnableRecording      bool          `mapstructure:"enable_recording"`
	EnableScreenSharing  bool          `mapstructure:"enable_screen_sharing"`
	RequireDisplayName   bool          `mapstructure:"require_display_name"`
	DefaultLanguage      string        `mapstructure:"default_language"`
	PatientPortalEnabled bool          `mapstructure:"patient_portal_enabled"`
}

var defaults = map[string]any{
	"http_addr":                    ":8080",
	"sqlite_dsn":                   "telehealth.db",
	"store_timeout":                "3s",
	"log_level":                    "info",
	"timezone":                     "UTC",
	"identity_secret":              "",
	"secret_key":                   "",
	"directory_cache_size":         256,
	"directory_cache_ttl":          "30s",
	"jitsi.domain":                 "meet.jit.si",
	"jitsi.room_prefix":            "openemr",
	"jitsi.jwt_enabled":            false,
	"jitsi.jwt_app_id":             "",
	"jitsi.jwt_app_secret":         "",
	"jitsi.jwt_app_secret_sealed":  "",
	"jitsi.jwt_ttl":                "2h",
	"jitsi.enable_lobby":           false,
	"jitsi.enable_chat":            true,
	"jitsi.enable_recording":       false,
	"jitsi.enable_screen_sharing":  true,
	"jitsi.require_display_name":   true,
	"jitsi.default_language":       "es",
	"jitsi.patient_portal_enabled": true,
}

// FlagSet returns the flags that override configuration keys. Dashes in flag
// names map to underscores in keys.
func FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flags.String("http-addr", ":8080", "HTTP listen address")
	flags.String("sqlite-dsn", "telehealth.db", "SQLite database path or DSN")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("timezone", "UTC", "time zone of appointment dates and times")
	return flags
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Load resolves configuration from flags, the environment and the file at
// path, in that order of precedence. flags and path are optional.
//
// Required values that are missing and values that do not parse are
// reported together.
func Load(flags *pflag.FlagSet, path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if _, known := defaults[flagKey(f.Name)]; !known || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(flagKey(f.Name), f)
		})
		if bindErr != nil {
			return Config{}, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	cfg.IdentitySecret = strings.TrimSpace(cfg.IdentitySecret)
	if cfg.IdentitySecret == "" {
		missing = append(missing, "identity_secret")
	}

	if cfg.StoreTimeout <= 0 {
		invalid = append(invalid, "store_timeout")
	}
	if cfg.DirectoryCacheSize < 0 {
		invalid = append(invalid, "directory_cache_size")
	}
	if cfg.DirectoryCacheTTL < 0 {
		invalid = append(invalid, "directory_cache_ttl")
	}
	if cfg.Jitsi.JWTTTL <= 0 {
		invalid = append(invalid, "jitsi.jwt_ttl")
	}

	loc, err := time.LoadLocation(strings.TrimSpace(cfg.Timezone))
	if err != nil {
		invalid = append(invalid, "timezone")
	} else {
		cfg.Location = loc
	}

	if sealed := strings.TrimSpace(cfg.Jitsi.JWTAppSecretSealed); sealed != "" {
		secret, err := OpenSealedSecret(sealed, cfg.SecretKey)
		if err != nil {
			invalid = append(invalid, "jitsi.jwt_app_secret_sealed")
		} else {
			cfg.Jitsi.JWTAppSecret = secret
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Validate reports ErrNotConfigured when rooms cannot be served: no
// conferencing domain, or signed credentials enabled without an application
// id and secret.
func (c Config) Validate() error {
	var reasons []string
	if strings.TrimSpace(c.Jitsi.Domain) == "" {
		reasons = append(reasons, "jitsi.domain is empty")
	}
	if c.Jitsi.JWTEnabled {
		if strings.TrimSpace(c.Jitsi.JWTAppID) == "" {
			reasons = append(reasons, "jitsi.jwt_app_id is empty")
		}
		if c.Jitsi.JWTAppSecret == "" {
			reasons = append(reasons, "jitsi.jwt_app_secret is empty")
		}
	}
	if len(reasons) > 0 {
		return fmt.Errorf("%w: %s", ErrNotConfigured, strings.Join(reasons, "; "))
	}
	return nil
}
