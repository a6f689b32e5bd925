package config_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmgmt/tasklens/internal/config"
)

func TestMustLoad_FromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TASKLENS_ENV", "local")
	t.Setenv("TASKLENS_TELEGRAM_TOKEN", "someTelegramToken")
	t.Setenv("TASKLENS_API_BASE_URL", "http://api:9000")
	t.Setenv("DB_HOST", "testHost")
	t.Setenv("DB_PORT", "12345")
	t.Setenv("DB_USERNAME", "admin")
	t.Setenv("DB_PASSWORD", "adminpass")
	t.Setenv("DB_NAME", "testName")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "someTelegramToken", cfg.Token)
	assert.Equal(t, 10*time.Second, cfg.PollerTimeout)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "http://api:9000", cfg.APIBaseURL)
	assert.Equal(t, "tasklens-cache.db", cfg.CachePath)
	assert.Equal(t, "testHost", cfg.Database.Host)
	assert.Equal(t, "12345", cfg.Database.Port)
	assert.Equal(t, "admin", cfg.Database.User)
	assert.Equal(t, "adminpass", cfg.Database.Password)
	assert.Equal(t, "testName", cfg.Database.Name)
}

func TestMustLoad_IntervalError(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TASKLENS_TELEGRAM_TIMEOUT", "error_value")

	assert.PanicsWithValue(t, "failed to parse interval from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_PortError(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TASKLENS_HTTP_PORT", "not-a-port")

	assert.PanicsWithValue(t, "failed to parse http port from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_FileNotExist(t *testing.T) {
	t.Setenv("CONFIG_PATH", "./invalid/path")
	assert.PanicsWithValue(t, "config file does not exist: ./invalid/path", func() {
		config.MustLoad()
	})
}

func TestMustLoad_ReadError(t *testing.T) {
	tmpFile := filet.TmpFile(t, "", "::::bad_yaml")
	defer filet.CleanUp(t)

	t.Setenv("CONFIG_PATH", tmpFile.Name())

	viper.SetConfigFile(tmpFile.Name())
	err := viper.ReadInConfig()
	require.Error(t, err)

	assert.PanicsWithValue(t, fmt.Sprintf("config error: %v", err), func() {
		config.MustLoad()
	})
}

func TestMustLoad_FromFile(t *testing.T) {
	configContent := `
---
env: "local"
http:
  port: 9090
telegram:
  token: test-token
bot:
  api_base_url: "http://localhost:9090"
postgres:
  host: "localhost"
  user: "pgUser"
  password: "pgPassword"
  db_name: "pgDatabase"
`
	filet.File(t, "conf.yaml", configContent)
	defer filet.CleanUp(t)

	t.Setenv("CONFIG_PATH", "conf.yaml")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "test-token", cfg.Token)
	assert.Equal(t, 10*time.Second, cfg.PollerTimeout)
	assert.Equal(t, "http://localhost:9090", cfg.APIBaseURL)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "pgUser", cfg.Database.User)
	assert.Equal(t, "pgPassword", cfg.Database.Password)
	assert.Equal(t, "pgDatabase", cfg.Database.Name)
}
