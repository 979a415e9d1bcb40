package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/loykin/prokill/internal/env"
	"github.com/loykin/prokill/internal/logger"
	"github.com/loykin/prokill/internal/process"
)

// EnvPrefix prefixes environment overrides, e.g. PROKILL_REFRESH_INTERVAL.
const EnvPrefix = "PROKILL"

// Defaults.
const (
	DefaultRefreshInterval = 2 * time.Second
	DefaultCPUThreshold    = 50.0
	DefaultLimit           = 10
	DefaultListen          = "127.0.0.1:8080"
	DefaultBasePath        = "/api"
	DefaultTokenTTL        = time.Hour
	DefaultMetricsListen   = "127.0.0.1:9100"
)

// Config represents the TOML file merged with environment overrides.
type Config struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	CPUThreshold    float64       `mapstructure:"cpu_threshold"`
	ShowAll         bool          `mapstructure:"show_all"`
	Limit           int           `mapstructure:"limit"`
	Sort            string        `mapstructure:"sort"`

	Policy  PolicyConfig  `mapstructure:"policy"`
	Log     logger.Config `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	History HistoryConfig `mapstructure:"history"`
}

type PolicyConfig struct {
	// ExtraProtected are exact process names that may never be killed,
	// in addition to the built-in critical set.
	ExtraProtected []string `mapstructure:"extra_protected"`
}

type ServerConfig struct {
	Listen    string        `mapstructure:"listen"`
	BasePath  string        `mapstructure:"base_path"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	TLS       TLSConfig     `mapstructure:"tls"`
}

// TLSConfig serves the API over HTTPS. Either CertFile and KeyFile are set,
// or Dir holds tls.crt/tls.key, optionally generated on first start.
type TLSConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	CertFile     string   `mapstructure:"cert_file"`
	KeyFile      string   `mapstructure:"key_file"`
	Dir          string   `mapstructure:"dir"`
	AutoGenerate bool     `mapstructure:"auto_generate"`
	CommonName   string   `mapstructure:"common_name"`
	DNSNames     []string `mapstructure:"dns_names"`
	ValidDays    int      `mapstructure:"valid_days"`
	MinVersion   string   `mapstructure:"min_version"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Listen     string `mapstructure:"listen"`
	Top        int    `mapstructure:"top"`
	MaxHistory int    `mapstructure:"max_history"`
}

type HistoryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("refresh_interval", DefaultRefreshInterval)
	v.SetDefault("cpu_threshold", DefaultCPUThreshold)
	v.SetDefault("show_all", false)
	v.SetDefault("limit", DefaultLimit)
	v.SetDefault("sort", process.SortCPU.String())

	v.SetDefault("policy.extra_protected", []string{})

	v.SetDefault("log.level", logger.LevelInfo)
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.color", false)
	v.SetDefault("log.timestamps", true)
	v.SetDefault("log.source", false)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.base_path", DefaultBasePath)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", DefaultTokenTTL)
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("server.tls.common_name", "localhost")
	v.SetDefault("server.tls.dns_names", []string{})
	v.SetDefault("server.tls.valid_days", 365)
	v.SetDefault("server.tls.min_version", "1.2")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", DefaultMetricsListen)
	v.SetDefault("metrics.top", 10)
	v.SetDefault("metrics.max_history", 60)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.timeout", 5*time.Second)
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// defaults always decode
	_ = v.Unmarshal(&c)
	return &c
}

// Load reads the optional TOML file at path and applies PROKILL_* environment
// overrides. envFiles are loaded into the process environment first without
// replacing variables that are already set; when none are given a ./.env
// file is loaded if present.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Policy.ExtraProtected = splitList(c.Policy.ExtraProtected)
	c.Server.TLS.DNSNames = splitList(c.Server.TLS.DNSNames)
	c.expandVars(env.New())
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("env file: %w", err)
		}
		return fmt.Errorf("parse env file: %w", err)
	}
	return nil
}

// expandVars resolves ${VAR} references in values that usually carry
// credentials or host specific paths.
func (c *Config) expandVars(e *env.Env) {
	e.ExpandAll(
		&c.History.DSN,
		&c.Server.JWTSecret,
		&c.Server.TLS.CertFile,
		&c.Server.TLS.KeyFile,
		&c.Server.TLS.Dir,
		&c.Log.File.Dir,
		&c.Log.File.Path,
	)
}

// splitList accepts both TOML arrays and comma separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval))
	}
	if c.CPUThreshold < 0 {
		errs = append(errs, fmt.Errorf("cpu_threshold must not be negative, got %v", c.CPUThreshold))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", c.Limit))
	}
	if _, err := process.ParseSortKey(c.Sort); err != nil {
		errs = append(errs, err)
	}
	if c.Server.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("server.token_ttl must not be negative"))
	}
	if t := c.Server.TLS; t.Enabled && t.Dir == "" && (t.CertFile == "" || t.KeyFile == "") {
		errs = append(errs, errors.New("server.tls needs cert_file and key_file, or dir"))
	}
	if c.History.Enabled && strings.TrimSpace(c.History.DSN) == "" {
		errs = append(errs, errors.New("history.dsn is required when history is enabled"))
	}
	return errors.Join(errs...)
}

// SortKey returns the configured ordering. Call after Validate.
func (c *Config) SortKey() process.SortKey {
	k, _ := process.ParseSortKey(c.Sort)
	return k
}

// ListFilter builds the listing filter for the configured view. highCPU keeps
// only processes above cpu_threshold.
func (c *Config) ListFilter(highCPU bool) process.Filter {
	var f process.Filter
	if highCPU {
		f.Threshold = c.CPUThreshold
	}
	if !c.ShowAll {
		f.Limit = c.Limit
	}
	return f
}
