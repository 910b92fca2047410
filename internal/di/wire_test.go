package di

import (
	"testing"

	"f1report/internal/config"
	"f1report/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Warehouse: config.Warehouse{Driver: "sqlite3", DSN: ":memory:"},
		Runner:    config.Runner{},
		Output:    config.Output{Prefix: "runs"},
		Server:    config.Server{Address: "127.0.0.1:0"},
		Storage:   config.Storage{Type: "local", BasePath: t.TempDir()},
		Logging:   config.Logging{Level: "debug", Format: "json"},
	}
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(config.Config{Logging: config.Logging{Level: "warn", Format: "json"}})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = NewLogger(config.Config{Logging: config.Logging{Level: "loud"}})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestServerGraphIsComplete(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, fx.ValidateApp(fx.Supply(cfg), Server))
}

func TestCoreUsesMemoryHistoryWithoutDatabase(t *testing.T) {
	var (
		runner  *service.Runner
		history service.RunRepository
	)
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(testConfig(t)),
		Core,
		fx.Populate(&runner, &history),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.IsType(t, &service.MemoryRunRepository{}, history)
	assert.Len(t, runner.Catalog(), 10)
}

func TestCoreUsesDatabaseHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.DB = config.DB{Enabled: true, Driver: "sqlite", DSN: ":memory:"}

	var history service.RunRepository
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(cfg),
		Core,
		fx.Populate(&history),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.IsType(t, &service.GormRunRepository{}, history)
}
