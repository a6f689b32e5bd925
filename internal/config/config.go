package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the application.
// It covers the API server, the PostgreSQL database, the Telegram bot and
// the bot's local invoice cache.
type Config struct {
	Env           string         `yaml:"env"`            // Env is the current environment: local, dev, prod.
	Database      PostgresConfig `yaml:"postgres"`       // Database holds the postgres database configuration
	HTTPPort      int            `yaml:"http_port"`      // HTTPPort is the API server listen port.
	Token         string         `yaml:"token"`          // Token is the unique telegram bot token
	PollerTimeout time.Duration  `yaml:"poller_timeout"` // PollerTimeout is the telegram long-poll timeout
	APIBaseURL    string         `yaml:"api_base_url"`   // APIBaseURL is the task API address the bot talks to.
	CachePath     string         `yaml:"cache_path"`     // CachePath is the bot's SQLite invoice cache file.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Name     string `yaml:"db_name"`  // Name is the name of the database.
}

// MustLoad loads the configuration and panics on failure. When CONFIG_PATH
// points at a YAML file it is read with viper; otherwise configuration
// comes from environment variables, with .env honored when present.
func MustLoad() *Config {
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return mustLoadFile(configPath)
	}
	return mustLoadEnv()
}

func mustLoadFile(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		panic("config error: " + err.Error())
	}

	defPollerTimeout := 10
	defHTTPPort := 8080

	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("http.port", defHTTPPort)
	viper.SetDefault("telegram.timeout", time.Duration(defPollerTimeout*int(time.Second)))
	viper.SetDefault("bot.cache_path", "tasklens-cache.db")

	return &Config{
		Env:           viper.GetString("env"),
		HTTPPort:      viper.GetInt("http.port"),
		Token:         viper.GetString("telegram.token"),
		PollerTimeout: viper.GetDuration("telegram.timeout"),
		APIBaseURL:    viper.GetString("bot.api_base_url"),
		CachePath:     viper.GetString("bot.cache_path"),
		Database: PostgresConfig{
			Host:     viper.GetString("postgres.host"),
			Port:     viper.GetString("postgres.port"),
			User:     viper.GetString("postgres.user"),
			Password: viper.GetString("postgres.password"),
			Name:     viper.GetString("postgres.db_name"),
		},
	}
}

func mustLoadEnv() *Config {
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(setDefaultEnv("TASKLENS_TELEGRAM_TIMEOUT", "10s"))
	if err != nil {
		panic("failed to parse interval from configuration")
	}

	port, err := strconv.Atoi(setDefaultEnv("TASKLENS_HTTP_PORT", "8080"))
	if err != nil {
		panic("failed to parse http port from configuration")
	}

	return &Config{
		Env:           setDefaultEnv("TASKLENS_ENV", "production"),
		HTTPPort:      port,
		Token:         os.Getenv("TASKLENS_TELEGRAM_TOKEN"),
		PollerTimeout: timeout,
		APIBaseURL:    setDefaultEnv("TASKLENS_API_BASE_URL", "http://localhost:8080"),
		CachePath:     setDefaultEnv("TASKLENS_CACHE_PATH", "tasklens-cache.db"),
		Database: PostgresConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			User:     os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
		},
	}
}

func setDefaultEnv(key, override string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = override
	}

	return value
}
