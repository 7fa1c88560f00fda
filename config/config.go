// Package config loads the application configuration from a JSON file, with
// .env and POIMAP_* environment overrides, and validates it before anything
// else is constructed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"poi-map/storage"
	"poi-map/utils/errors"
)

// LogLevels accepted by the loglevel key.
var LogLevels = []string{"NOTSET", "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

const envPrefix = "POIMAP"

// Config is the validated application configuration.
type Config struct {
	Title    string `mapstructure:"title"`
	Database string `mapstructure:"database"`
	// Categories maps each category name to an icon file; an empty value
	// uses the default marker icon. Names are lowercased by viper.
	Categories map[string]string `mapstructure:"-"`
	LogLevel   string            `mapstructure:"loglevel"`
	Zoom       int               `mapstructure:"zoom"`
	Center     []float64         `mapstructure:"center"`
	Port       int               `mapstructure:"port"`

	CORS  CORSConfig  `mapstructure:"cors"`
	Redis RedisConfig `mapstructure:"redis"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Auth  AuthConfig  `mapstructure:"auth"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RedisConfig enables the geo index mirror when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoConfig struct {
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// AuthConfig protects mutating routes when JWTSecret is set.
type AuthConfig struct {
	PasswordHash string `mapstructure:"password_hash"`
	JWTSecret    string `mapstructure:"jwt_secret"`
}

// Enabled reports whether mutating routes require a token.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// CategoryNames returns the configured category names in sorted order.
func (c *Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Addr is the listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Load reads and validates the configuration file at path. Any failure is an
// errors.ErrConfig.
func Load(path string) (*Config, error) {
	if ext := filepath.Ext(path); !strings.EqualFold(ext, ".json") {
		return nil, fmt.Errorf("%w: file type %q is not supported, config file has to be JSON", errors.ErrConfig, ext)
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: loading .env: %v", errors.ErrConfig, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errors.ErrConfig, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errors.ErrConfig, path, err)
	}
	cats, err := categories(v.Get("categories"))
	if err != nil {
		return nil, err
	}
	cfg.Categories = cats
	if err := cfg.Validate(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// categories decodes the raw categories object. Unmarshal would drop the
// null entries that select the default icon.
func categories(raw any) (map[string]string, error) {
	out := map[string]string{}
	if raw == nil {
		return out, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: categories must be an object of name to icon path", errors.ErrConfig)
	}
	for name, icon := range m {
		switch icon := icon.(type) {
		case nil:
			out[name] = ""
		case string:
			out[name] = icon
		default:
			return nil, fmt.Errorf("%w: icon for category '%s' must be a path or null", errors.ErrConfig, name)
		}
	}
	return out, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "INFO")
	v.SetDefault("zoom", 6)
	v.SetDefault("center", []float64{56, 10})
	v.SetDefault("port", 8050)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("mongo.database", "poi_db")
	v.SetDefault("mongo.collection", "pois")
	// Registered so AutomaticEnv can override keys absent from the file.
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.jwt_secret", "")
}

// Validate checks the configuration. Relative icon paths are resolved against
// baseDir, the directory holding the config file.
func (c *Config) Validate(baseDir string) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", errors.ErrConfig, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Title) == "" {
		return fail("title is required")
	}
	if c.Database == "" {
		return fail("database is required")
	}
	kind, err := storage.KindOf(c.Database)
	if err != nil {
		return err
	}
	if kind != storage.KindMongo {
		dir := filepath.Dir(c.Database)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return fail("database directory %q does not exist", dir)
		}
	}

	c.LogLevel = strings.ToUpper(c.LogLevel)
	if !contains(LogLevels, c.LogLevel) {
		return fail("loglevel %q is not one of %s", c.LogLevel, strings.Join(LogLevels, ", "))
	}

	if len(c.Categories) == 0 {
		return fail("at least one category is required")
	}
	for name, icon := range c.Categories {
		if strings.TrimSpace(name) == "" {
			return fail("category names must not be empty")
		}
		if icon == "" {
			continue
		}
		if !filepath.IsAbs(icon) {
			icon = filepath.Join(baseDir, icon)
			c.Categories[name] = icon
		}
		if _, err := os.Stat(icon); err != nil {
			return fail("icon for category '%s' does not exist", name)
		}
	}

	if c.Zoom < 0 || c.Zoom > 22 {
		return fail("zoom %d not in [0, 22]", c.Zoom)
	}
	if len(c.Center) != 2 {
		return fail("center must be [latitude, longitude]")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fail("port %d not in [1, 65535]", c.Port)
	}
	if c.Auth.Enabled() && c.Auth.PasswordHash == "" {
		return fail("auth.password_hash is required when auth.jwt_secret is set")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
