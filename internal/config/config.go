package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Dataset
	DataPath  string `mapstructure:"data_path" yaml:"data_path"`
	Sheet     string `mapstructure:"sheet" yaml:"sheet"`
	CacheSize int    `mapstructure:"cache_size" yaml:"cache_size"`

	// Recommendation runtime
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Provider HTTP timeout; recommendation calls are never retried
	HTTPTimeoutSec int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Session selection storage: file, memory or postgres
	SessionBackend string `mapstructure:"session_backend" yaml:"session_backend"`
	SessionDir     string `mapstructure:"session_dir" yaml:"session_dir"`
	DatabaseURL    string `mapstructure:"database_url" yaml:"database_url"`

	// Export: local or s3
	ExportTarget string `mapstructure:"export_target" yaml:"export_target"`
	ExportDir    string `mapstructure:"export_dir" yaml:"export_dir"`
	S3Endpoint   string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3Region     string `mapstructure:"s3_region" yaml:"s3_region"`
	S3AccessKey  string `mapstructure:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey  string `mapstructure:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket     string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix     string `mapstructure:"s3_prefix" yaml:"s3_prefix"`
	S3UseSSL     bool   `mapstructure:"s3_use_ssl" yaml:"s3_use_ssl"`

	// Server
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// Dir returns ~/.parishx, the home of the config file and default state.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".parishx"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.parishx/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (PARISHX_*) > config file > defaults. A .env file in the
// working directory is read first and never overrides the real environment.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PARISHX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_path", "")
	v.SetDefault("sheet", "")
	v.SetDefault("cache_size", 8)
	v.SetDefault("default_provider", "gemini")
	v.SetDefault("default_model", "gemini-2.0-flash")
	v.SetDefault("api_key", "")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 120)
	v.SetDefault("session_backend", "file")
	v.SetDefault("session_dir", "")
	v.SetDefault("database_url", "")
	v.SetDefault("export_target", "local")
	v.SetDefault("export_dir", ".")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("s3_use_ssl", true)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.SessionDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.SessionDir = filepath.Join(dir, "sessions")
	}
	return &c, nil
}

// Keys lists every settable key in display order.
func Keys() []string {
	return []string{
		"data_path", "sheet", "cache_size",
		"default_provider", "default_model", "api_key", "gemini_api_key", "max_tokens", "temperature",
		"http_timeout_sec",
		"ollama_host", "ollama_timeout_sec",
		"session_backend", "session_dir", "database_url",
		"export_target", "export_dir",
		"s3_endpoint", "s3_region", "s3_access_key", "s3_secret_key", "s3_bucket", "s3_prefix", "s3_use_ssl",
		"listen_addr", "log_level",
	}
}

// Set assigns a single key from its string form, validating enumerations.
func (c *Global) Set(key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "data_path":
		c.DataPath = val
	case "sheet":
		c.Sheet = val
	case "cache_size":
		c.CacheSize, err = atoi()
	case "default_provider":
		switch strings.ToLower(val) {
		case "gemini", "google":
			c.DefaultProvider = "gemini"
		case "openrouter":
			c.DefaultProvider = "openrouter"
		case "ollama", "local":
			c.DefaultProvider = "ollama"
		default:
			return fmt.Errorf("invalid default_provider: %s (use gemini, openrouter or ollama)", val)
		}
	case "default_model":
		c.DefaultModel = val
	case "api_key":
		c.APIKey = val
	case "gemini_api_key":
		c.GeminiAPIKey = val
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return fmt.Errorf("invalid float for temperature: %w", perr)
		}
		c.Temperature = f
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "ollama_host":
		c.OllamaHost = val
	case "ollama_timeout_sec":
		c.OllamaTimeoutSec, err = atoi()
	case "session_backend":
		switch val {
		case "file", "memory", "postgres":
			c.SessionBackend = val
		default:
			return fmt.Errorf("invalid session_backend: %s (use file, memory or postgres)", val)
		}
	case "session_dir":
		c.SessionDir = val
	case "database_url":
		c.DatabaseURL = val
	case "export_target":
		switch val {
		case "local", "s3":
			c.ExportTarget = val
		default:
			return fmt.Errorf("invalid export_target: %s (use local or s3)", val)
		}
	case "export_dir":
		c.ExportDir = val
	case "s3_endpoint":
		c.S3Endpoint = val
	case "s3_region":
		c.S3Region = val
	case "s3_access_key":
		c.S3AccessKey = val
	case "s3_secret_key":
		c.S3SecretKey = val
	case "s3_bucket":
		c.S3Bucket = val
	case "s3_prefix":
		c.S3Prefix = val
	case "s3_use_ssl":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for s3_use_ssl: %w", perr)
		}
		c.S3UseSSL = b
	case "listen_addr":
		c.ListenAddr = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

// ProviderKey returns the credential for the configured provider.
func (c *Global) ProviderKey() string {
	if c.DefaultProvider == "gemini" && c.GeminiAPIKey != "" {
		return c.GeminiAPIKey
	}
	return c.APIKey
}
