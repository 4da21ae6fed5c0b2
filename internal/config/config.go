// Package config provides configuration management for the indexer, server,
// and crawler binaries. It supports loading configuration from multiple
// sources: command-line flags, config files, and environment variables, with
// proper precedence handling.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration settings shared across the indexer, server,
// and crawler binaries. Each binary only reads the fields relevant to it.
type Config struct {
	// Shared settings
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`

	// Indexer settings
	InputPath   string `mapstructure:"input_path"`
	OutputDir   string `mapstructure:"output_dir"`
	SmoothedIDF bool   `mapstructure:"smoothed_idf"`

	// Server settings
	IndexDir               string   `mapstructure:"index_dir"`
	ListenAddr              string   `mapstructure:"listen_addr"`
	DefaultK                int      `mapstructure:"default_k" validate:"min=1,max=100"`
	MaxK                    int      `mapstructure:"max_k" validate:"min=1,max=100"`
	AdminToken              string   `mapstructure:"admin_token"`
	CORSOrigins             []string `mapstructure:"cors_origins"`
	ConcurrentPostingLoads  int      `mapstructure:"concurrent_posting_loads" validate:"min=0"`

	// Crawler settings
	Seeds        string `mapstructure:"seeds"`
	MaxDepth     int    `mapstructure:"max_depth" validate:"min=0"`
	MaxPages     int    `mapstructure:"max_pages" validate:"min=1"`
	MaxPerHost   int    `mapstructure:"max_per_host" validate:"min=1"`
	SameHostOnly bool   `mapstructure:"same_host_only"`
	UserAgent    string `mapstructure:"user_agent"`
	CrawlCacheDir string `mapstructure:"crawl_cache_dir"`
	OutputPath   string `mapstructure:"output_path"`
}

// NewConfig creates a new Config with default values for all optional
// parameters, so each binary can run with sensible defaults without
// requiring explicit configuration.
func NewConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",

		InputPath:   "",
		OutputDir:   "./index",
		SmoothedIDF: false,

		IndexDir:               "./index",
		ListenAddr:             "localhost:8080",
		DefaultK:               10,
		MaxK:                   100,
		AdminToken:             "",
		CORSOrigins:            nil,
		ConcurrentPostingLoads: 4,

		Seeds:         "",
		MaxDepth:      3,
		MaxPages:      1000,
		MaxPerHost:    200,
		SameHostOnly:  true,
		UserAgent:     "kestrel-crawler/1.0",
		CrawlCacheDir: "",
		OutputPath:    "",
	}
}

// Load loads configuration from environment variables with defaults.
// Environment variables should be prefixed with TFIDX_.
func Load() (*Config, error) {
	cfg := NewConfig()
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML/JSON/TOML file, with
// environment variables as fallback, and defaults as final fallback.
// The precedence order is: config file > environment variables > defaults.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := NewConfig()
	loadFromEnv(cfg)

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	applyViperOverrides(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithFlags loads configuration from command-line flags, config file,
// environment variables, and defaults.
// The precedence order is: flags > config file > environment variables > defaults.
func LoadWithFlags(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg := NewConfig()
	loadFromEnv(cfg)

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		applyViperOverrides(cfg, v)
	}

	applyFlagOverrides(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyViperOverrides(cfg *Config, v *viper.Viper) {
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("log_format") {
		cfg.LogFormat = v.GetString("log_format")
	}
	if v.IsSet("input_path") {
		cfg.InputPath = v.GetString("input_path")
	}
	if v.IsSet("output_dir") {
		cfg.OutputDir = v.GetString("output_dir")
	}
	if v.IsSet("smoothed_idf") {
		cfg.SmoothedIDF = v.GetBool("smoothed_idf")
	}
	if v.IsSet("index_dir") {
		cfg.IndexDir = v.GetString("index_dir")
	}
	if v.IsSet("listen_addr") {
		cfg.ListenAddr = v.GetString("listen_addr")
	}
	if v.IsSet("default_k") {
		cfg.DefaultK = v.GetInt("default_k")
	}
	if v.IsSet("max_k") {
		cfg.MaxK = v.GetInt("max_k")
	}
	if v.IsSet("admin_token") {
		cfg.AdminToken = v.GetString("admin_token")
	}
	if v.IsSet("cors_origins") {
		cfg.CORSOrigins = v.GetStringSlice("cors_origins")
	}
	if v.IsSet("concurrent_posting_loads") {
		cfg.ConcurrentPostingLoads = v.GetInt("concurrent_posting_loads")
	}
	if v.IsSet("seeds") {
		cfg.Seeds = v.GetString("seeds")
	}
	if v.IsSet("max_depth") {
		cfg.MaxDepth = v.GetInt("max_depth")
	}
	if v.IsSet("max_pages") {
		cfg.MaxPages = v.GetInt("max_pages")
	}
	if v.IsSet("max_per_host") {
		cfg.MaxPerHost = v.GetInt("max_per_host")
	}
	if v.IsSet("same_host_only") {
		cfg.SameHostOnly = v.GetBool("same_host_only")
	}
	if v.IsSet("user_agent") {
		cfg.UserAgent = v.GetString("user_agent")
	}
	if v.IsSet("crawl_cache_dir") {
		cfg.CrawlCacheDir = v.GetString("crawl_cache_dir")
	}
	if v.IsSet("output_path") {
		cfg.OutputPath = v.GetString("output_path")
	}
}

func applyFlagOverrides(cfg *Config, flags map[string]interface{}) {
	setString := func(key string, dst *string) {
		if val, ok := flags[key]; ok && val != nil {
			if strVal, ok := val.(string); ok && strVal != "" {
				*dst = strVal
			}
		}
	}
	setInt := func(key string, dst *int) {
		if val, ok := flags[key]; ok && val != nil {
			if intVal, ok := val.(int); ok {
				*dst = intVal
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if val, ok := flags[key]; ok && val != nil {
			if boolVal, ok := val.(bool); ok {
				*dst = boolVal
			}
		}
	}
	setStringSlice := func(key string, dst *[]string) {
		if val, ok := flags[key]; ok && val != nil {
			if sliceVal, ok := val.([]string); ok {
				*dst = sliceVal
			}
		}
	}

	setString("log_level", &cfg.LogLevel)
	setString("log_format", &cfg.LogFormat)
	setString("input_path", &cfg.InputPath)
	setString("output_dir", &cfg.OutputDir)
	setBool("smoothed_idf", &cfg.SmoothedIDF)
	setString("index_dir", &cfg.IndexDir)
	setString("listen_addr", &cfg.ListenAddr)
	setInt("default_k", &cfg.DefaultK)
	setInt("max_k", &cfg.MaxK)
	setString("admin_token", &cfg.AdminToken)
	setStringSlice("cors_origins", &cfg.CORSOrigins)
	setInt("concurrent_posting_loads", &cfg.ConcurrentPostingLoads)
	setString("seeds", &cfg.Seeds)
	setInt("max_depth", &cfg.MaxDepth)
	setInt("max_pages", &cfg.MaxPages)
	setInt("max_per_host", &cfg.MaxPerHost)
	setBool("same_host_only", &cfg.SameHostOnly)
	setString("user_agent", &cfg.UserAgent)
	setString("crawl_cache_dir", &cfg.CrawlCacheDir)
	setString("output_path", &cfg.OutputPath)
}

// envPrefix is prepended to every environment variable this package reads.
const envPrefix = "TFIDX_"

// loadFromEnv loads configuration from TFIDX_-prefixed environment variables
// into the provided Config. This implements 12-factor app principles
// (III. Store config in environment).
func loadFromEnv(cfg *Config) {
	getEnv := func(name string) string {
		return os.Getenv(envPrefix + name)
	}

	if val := getEnv("LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := getEnv("LOG_FORMAT"); val != "" {
		cfg.LogFormat = val
	}

	if val := getEnv("INPUT_PATH"); val != "" {
		cfg.InputPath = val
	}
	if val := getEnv("OUTPUT_DIR"); val != "" {
		cfg.OutputDir = val
	}
	if val := getEnv("SMOOTHED_IDF"); val != "" {
		cfg.SmoothedIDF = val == "true" || val == "1" || val == "yes"
	}

	if val := getEnv("INDEX_DIR"); val != "" {
		cfg.IndexDir = val
	}
	if val := getEnv("LISTEN_ADDR"); val != "" {
		cfg.ListenAddr = val
	}
	if val := getEnv("DEFAULT_K"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.DefaultK = intVal
		}
	}
	if val := getEnv("MAX_K"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.MaxK = intVal
		}
	}
	if val := getEnv("ADMIN_TOKEN"); val != "" {
		cfg.AdminToken = val
	}
	if val := getEnv("CORS_ORIGINS"); val != "" {
		cfg.CORSOrigins = splitAndTrim(val)
	}
	if val := getEnv("CONCURRENT_POSTING_LOADS"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.ConcurrentPostingLoads = intVal
		}
	}

	if val := getEnv("SEEDS"); val != "" {
		cfg.Seeds = val
	}
	if val := getEnv("MAX_DEPTH"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.MaxDepth = intVal
		}
	}
	if val := getEnv("MAX_PAGES"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.MaxPages = intVal
		}
	}
	if val := getEnv("MAX_PER_HOST"); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			cfg.MaxPerHost = intVal
		}
	}
	if val := getEnv("SAME_HOST_ONLY"); val != "" {
		cfg.SameHostOnly = val == "true" || val == "1" || val == "yes"
	}
	if val := getEnv("USER_AGENT"); val != "" {
		cfg.UserAgent = val
	}
	if val := getEnv("CRAWL_CACHE_DIR"); val != "" {
		cfg.CrawlCacheDir = val
	}
	if val := getEnv("OUTPUT_PATH"); val != "" {
		cfg.OutputPath = val
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Validate validates all configuration values and returns descriptive errors
// for any invalid settings, aggregating both struct-tag validation and
// manual cross-field checks that validator tags alone can't express.
func (c *Config) Validate() error {
	var errors []string

	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errors = append(errors, fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag()))
			}
		} else {
			errors = append(errors, err.Error())
		}
	}

	if c.DefaultK > c.MaxK {
		errors = append(errors, fmt.Sprintf("default_k (%d) cannot exceed max_k (%d)", c.DefaultK, c.MaxK))
	}

	if c.MaxPerHost > c.MaxPages {
		errors = append(errors, fmt.Sprintf("max_per_host (%d) cannot exceed max_pages (%d)", c.MaxPerHost, c.MaxPages))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// GetListenAddr returns the configured server listen address.
func (c *Config) GetListenAddr() string {
	return c.ListenAddr
}

// GetCacheDir returns the crawler's page cache directory, using a default
// under the user's cache directory if not configured.
func (c *Config) GetCacheDir() string {
	if c.CrawlCacheDir != "" {
		return c.CrawlCacheDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/kestrel-crawl-cache"
	}
	return homeDir + "/.cache/kestrel/crawl"
}
