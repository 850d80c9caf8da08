package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldreport/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "https://jsonplaceholder.typicode.com", cfg.RemoteBaseURL)
	assert.Equal(t, "posts", cfg.RemoteResource)
	assert.Equal(t, 30*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, "user", cfg.BootstrapUsername)
	assert.Empty(t, cfg.RabbitMQURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldreport.yaml")
	content := "APP_PORT: \":9090\"\nREMOTE_RESOURCE: /incidents/\nDATABASE_DSN: from-file.db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DATABASE_DSN", "from-env.db")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.AppPort)
	assert.Equal(t, "incidents", cfg.RemoteResource)
	assert.Equal(t, "from-env.db", cfg.DatabaseDSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFromViper_RejectsUnknownDriver(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("DB_DRIVER", "mysql")

	_, err := config.FromViper(v)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
}

func TestFromViper_RejectsNonPositiveTimeout(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("REMOTE_TIMEOUT", "0s")

	_, err := config.FromViper(v)
	assert.Error(t, err)
}
