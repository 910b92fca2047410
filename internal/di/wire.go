package di

import (
	"context"
	"os"
	"time"

	"f1report/internal/cache"
	"f1report/internal/config"
	"f1report/internal/database"
	sqlinfra "f1report/internal/infrastructure/sql"
	"f1report/internal/server"
	"f1report/internal/service"
	"f1report/internal/storage"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

const cacheConnectTimeout = 5 * time.Second

// Core provides everything needed to execute a run: logger, storage,
// run history, warehouse connector and the runner. config.Config must be
// supplied by the caller.
var Core = fx.Options(
	fx.Provide(
		NewLogger,
		NewStorage,
		NewHistory,
		NewConnector,
		NewRunner,
	),
)

// Server adds the background processor and the HTTP API on top of Core.
var Server = fx.Options(
	Core,
	fx.Provide(
		NewProcessor,
		server.NewServer,
	),
	fx.Invoke(registerServer),
)

// NewLogger создает и настраивает логгер на основе конфигурации
func NewLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Неверный уровень логирования, используется info")
	}
	logger.SetLevel(level)

	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return logger
}

// NewStorage создает хранилище книг по настройкам
func NewStorage(cfg config.Config, logger *logrus.Logger) (storage.Storage, error) {
	return storage.New(cfg.Storage, logger)
}

// NewHistory выбирает хранилище истории прогонов: БД, если она включена,
// иначе память процесса.
func NewHistory(lc fx.Lifecycle, cfg config.Config, logger *logrus.Logger) (service.RunRepository, error) {
	if !cfg.DB.Enabled {
		logger.Debug("БД истории не настроена, история хранится в памяти")
		return service.NewMemoryRunRepository(), nil
	}

	db, err := database.NewDatabase(cfg.DB, cfg.Server.Debug)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db, logger); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return service.NewGormRunRepository(db, logger), nil
}

// NewConnector открывает одно соединение с хранилищем данных на прогон
func NewConnector(cfg config.Config) service.Connector {
	return service.ConnectorFunc(func(ctx context.Context) (service.Warehouse, error) {
		db, err := sqlinfra.Open(ctx, cfg.Warehouse)
		if err != nil {
			return nil, err
		}
		return db, nil
	})
}

// NewRunner собирает исполнителя отчётов; кэш подключается, если он включен
// и Redis доступен.
func NewRunner(
	lc fx.Lifecycle,
	cfg config.Config,
	connector service.Connector,
	store storage.Storage,
	history service.RunRepository,
	logger *logrus.Logger,
) *service.Runner {
	var opts []service.RunnerOption
	if cfg.Cache.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), cacheConnectTimeout)
		defer cancel()

		rc, client, err := cache.NewRedis(ctx, cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Кэш результатов недоступен, запросы пойдут в хранилище")
		} else {
			opts = append(opts, service.WithCache(rc))
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error { return client.Close() },
			})
		}
	}

	return service.NewRunner(connector, store, history, service.RunnerConfig{
		QueryTimeout: cfg.Runner.QueryTimeout,
		Prefix:       cfg.Output.Prefix,
	}, logger, opts...)
}

// NewProcessor создает фоновый процессор прогонов и привязывает его к жизненному циклу
func NewProcessor(lc fx.Lifecycle, runner *service.Runner, history service.RunRepository, logger *logrus.Logger) *service.RunProcessor {
	p := service.NewRunProcessor(runner, history, logger, 0)
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go p.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			// текущий прогон прерывается, оставшиеся отчёты помечаются пропущенными
			cancel()
			p.Stop()
			return nil
		},
	})
	return p
}

// registerServer настраивает хуки жизненного цикла HTTP сервера
func registerServer(lc fx.Lifecycle, srv *server.Server, cfg config.Config, logger *logrus.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.WithField("config", cfg.String()).Info("Запуск сервиса отчётов")
			go func() {
				if err := srv.Start(cfg.Server.Address); err != nil {
					logger.WithError(err).Error("Не удалось запустить HTTP сервер")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
