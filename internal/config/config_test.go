package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  account: YRT-AO1
  user: analyst
  password: secret
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "snowflake", cfg.Warehouse.Driver)
	assert.Equal(t, "F1_WH", cfg.Warehouse.Warehouse)
	assert.Equal(t, "F1_DATA_WAREHOUSE", cfg.Warehouse.Database)
	assert.Equal(t, "FACTS", cfg.Warehouse.Schema)
	assert.Equal(t, 5*time.Minute, cfg.Runner.QueryTimeout)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.DB.Enabled)
}

func TestLoadFileEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  account: YRT-AO1
  user: analyst
`)
	t.Setenv("APP_WAREHOUSE_USER", "from-env")
	t.Setenv("APP_RUNNER_QUERY_TIMEOUT", "45s")
	t.Setenv("APP_LOGGING_LEVEL", "debug")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Warehouse.User)
	assert.Equal(t, 45*time.Second, cfg.Runner.QueryTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileValidation(t *testing.T) {
	cases := map[string]string{
		"missing account": `
warehouse:
  user: analyst
`,
		"unknown driver": `
warehouse:
  driver: oracle
  dsn: x
`,
		"postgres without dsn": `
warehouse:
  driver: postgres
`,
		"bad storage": `
warehouse:
  driver: sqlite3
  dsn: f1.db
storage:
  type: ftp
`,
		"bad log level": `
warehouse:
  driver: duckdb
  dsn: f1.duckdb
logging:
  level: loud
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestStringHidesSecrets(t *testing.T) {
	cfg := Config{
		Warehouse: Warehouse{Driver: "snowflake", User: "analyst", Password: "Snowflake@2025"},
		DB:        DB{DSN: "postgres://u:p@h/db"},
	}
	s := cfg.String()
	assert.NotContains(t, s, "Snowflake@2025")
	assert.NotContains(t, s, "postgres://u:p@h/db")
	assert.Contains(t, s, "[HIDDEN]")
}
