package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bassista/solution_explorer/internal/logger"
)

type Config struct {
	Server   ServerConfig
	Explorer ExplorerConfig
	Misc     MiscConfig
}

type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

type ExplorerConfig struct {
	// RootPath is opened when the server starts; empty waits for POST /solution/open.
	RootPath        string
	WorkDir         string
	Extensions      []string
	IgnoreFile      string
	Debounce        time.Duration
	LoadConcurrency int
}

type MiscConfig struct {
	LogLevel string
	GinMode  string
}

// LoadConfig reads config.yaml from EXPLORER_CONFIG_PATH (default ./config),
// a .env file when present, and EXPLORER_* environment variables, in
// increasing order of precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("config").Warnf("cannot read .env file: %v", err)
	}

	confPath := getEnvOrDefault("EXPLORER_CONFIG_PATH", "./config")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(confPath)

	setDefaults()

	// EXPLORER_SERVER_PORT overrides server.port and so on.
	viper.SetEnvPrefix("EXPLORER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Info("no config file found, using defaults and env vars")
	}

	port, err := getEnvOrViperPort("PORT", "server.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               port,
			ReadTimeout:        viper.GetDuration("server.read_timeout"),
			WriteTimeout:       viper.GetDuration("server.write_timeout"),
			IdleTimeout:        viper.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    viper.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     viper.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: viper.GetString("server.cors_allowed_origins"),
		},
		Explorer: ExplorerConfig{
			RootPath:        viper.GetString("explorer.root_path"),
			WorkDir:         viper.GetString("explorer.work_dir"),
			Extensions:      splitList(viper.GetStringSlice("explorer.extensions")),
			IgnoreFile:      viper.GetString("explorer.ignore_file"),
			Debounce:        viper.GetDuration("explorer.debounce"),
			LoadConcurrency: viper.GetInt("explorer.load_concurrency"),
		},
		Misc: MiscConfig{
			LogLevel: getEnvOrDefault("LOG_LEVEL", viper.GetString("misc.log_level")),
			GinMode:  viper.GetString("misc.gin_mode"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "0s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.shutdown_timeout", "5s")
	viper.SetDefault("server.request_timeout", "30s")
	viper.SetDefault("server.cors_allowed_origins", "*")

	viper.SetDefault("explorer.root_path", "")
	viper.SetDefault("explorer.work_dir", "")
	viper.SetDefault("explorer.extensions", []string{".bpmn"})
	viper.SetDefault("explorer.ignore_file", ".gitignore")
	viper.SetDefault("explorer.debounce", "200ms")
	viper.SetDefault("explorer.load_concurrency", 8)

	viper.SetDefault("misc.log_level", "info")
	viper.SetDefault("misc.gin_mode", "release")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	// write timeout 0 keeps the watch stream open
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server request timeout must be positive")
	}
	if c.Explorer.Debounce <= 0 {
		return fmt.Errorf("invalid explorer debounce: %s", c.Explorer.Debounce)
	}
	if c.Explorer.LoadConcurrency <= 0 {
		return fmt.Errorf("invalid explorer load concurrency: %d", c.Explorer.LoadConcurrency)
	}
	if len(c.Explorer.Extensions) == 0 {
		return errors.New("at least one diagram extension is required")
	}
	for _, ext := range c.Explorer.Extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid diagram extension %q: must start with a dot", ext)
		}
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvOrViperPort(envKey, viperKey string) (int, error) {
	if v := os.Getenv(envKey); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", envKey, v, err)
		}
		return port, nil
	}
	return viper.GetInt(viperKey), nil
}
