package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Warehouse содержит параметры подключения к хранилищу данных.
type Warehouse struct {
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Account      string        `mapstructure:"account"`
	Warehouse    string        `mapstructure:"warehouse"`
	Database     string        `mapstructure:"database"`
	Schema       string        `mapstructure:"schema"`
	Role         string        `mapstructure:"role"`
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
}

// Runner содержит настройки прогона отчётов.
type Runner struct {
	Reports      []string      `mapstructure:"reports"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// Output описывает, куда сохраняется итоговая книга.
type Output struct {
	Prefix string `mapstructure:"prefix"`
}

// Server содержит настройки HTTP-сервера.
type Server struct {
	Address string `mapstructure:"address"`
	Debug   bool   `mapstructure:"debug"`
}

// DB содержит параметры подключения к БД истории прогонов.
type DB struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

// Storage описывает настройки хранилища файлов.
type Storage struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"basepath"`
	S3       S3     `mapstructure:"s3"`
}

// S3 содержит настройки для S3-совместимого хранилища.
type S3 struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Cache содержит настройки кэша результатов в Redis.
type Cache struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Logging содержит настройки логирования.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config объединяет все разделы конфигурации.
type Config struct {
	Warehouse Warehouse `mapstructure:"warehouse"`
	Runner    Runner    `mapstructure:"runner"`
	Output    Output    `mapstructure:"output"`
	Server    Server    `mapstructure:"server"`
	DB        DB        `mapstructure:"database"`
	Storage   Storage   `mapstructure:"storage"`
	Cache     Cache     `mapstructure:"cache"`
	Logging   Logging   `mapstructure:"logging"`
}

var warehouseDrivers = []string{"snowflake", "postgres", "duckdb", "sqlite3"}

// Load читает .env, файл конфигурации и окружение с помощью viper.
func Load() (Config, error) {
	// .env необязателен: переменные могут прийти из окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/f1report")

	return load(v)
}

// LoadFile читает конфигурацию из указанного файла.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvironmentVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		// Без файла работаем на переменных окружения и значениях по умолчанию
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Warehouse defaults
	v.SetDefault("warehouse.driver", "snowflake")
	v.SetDefault("warehouse.warehouse", "F1_WH")
	v.SetDefault("warehouse.database", "F1_DATA_WAREHOUSE")
	v.SetDefault("warehouse.schema", "FACTS")
	v.SetDefault("warehouse.login_timeout", 30*time.Second)

	// Runner defaults
	v.SetDefault("runner.query_timeout", 5*time.Minute)
	v.SetDefault("output.prefix", "runs")

	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debug", false)

	// Run history defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "f1report.db")

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.basepath", "./reports")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "f1-reports")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", time.Hour)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// bindEnvironmentVariables привязывает переменные окружения к конфигурации
func bindEnvironmentVariables(v *viper.Viper) {
	keys := []string{
		"warehouse.driver", "warehouse.dsn", "warehouse.user", "warehouse.password",
		"warehouse.account", "warehouse.warehouse", "warehouse.database",
		"warehouse.schema", "warehouse.role", "warehouse.login_timeout",
		"runner.reports", "runner.query_timeout",
		"output.prefix",
		"server.address", "server.debug",
		"database.enabled", "database.driver", "database.dsn",
		"storage.type", "storage.basepath",
		"storage.s3.region", "storage.s3.bucket", "storage.s3.endpoint",
		"storage.s3.access_key", "storage.s3.secret_key",
		"cache.enabled", "cache.addr", "cache.password", "cache.db", "cache.ttl",
		"logging.level", "logging.format",
	}
	for _, key := range keys {
		_ = v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
}

// validateConfig проверяет корректность конфигурации
func validateConfig(cfg Config) error {
	// Проверка хранилища данных
	if !contains(warehouseDrivers, cfg.Warehouse.Driver) {
		return fmt.Errorf("warehouse driver must be one of %v, got: %s", warehouseDrivers, cfg.Warehouse.Driver)
	}
	if cfg.Warehouse.DSN == "" {
		if cfg.Warehouse.Driver != "snowflake" {
			return fmt.Errorf("warehouse dsn cannot be empty for driver %s", cfg.Warehouse.Driver)
		}
		if cfg.Warehouse.Account == "" {
			return fmt.Errorf("warehouse account cannot be empty")
		}
		if cfg.Warehouse.User == "" {
			return fmt.Errorf("warehouse user cannot be empty")
		}
	}
	if cfg.Runner.QueryTimeout < 0 {
		return fmt.Errorf("runner query timeout cannot be negative")
	}

	if cfg.DB.Enabled {
		if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
			return fmt.Errorf("database driver must be 'postgres' or 'sqlite', got: %s", cfg.DB.Driver)
		}
		if cfg.DB.DSN == "" {
			return fmt.Errorf("database DSN cannot be empty")
		}
	}

	// Проверка настроек хранилища
	if cfg.Storage.Type != "local" && cfg.Storage.Type != "s3" {
		return fmt.Errorf("storage type must be 'local' or 's3', got: %s", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "local" && cfg.Storage.BasePath == "" {
		return fmt.Errorf("storage basepath cannot be empty for local storage")
	}
	if cfg.Storage.Type == "s3" {
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("S3 region cannot be empty")
		}
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.Addr == "" {
		return fmt.Errorf("cache address cannot be empty")
	}

	// Проверка уровня логирования
	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLogLevels, strings.ToLower(cfg.Logging.Level)) {
		return fmt.Errorf("invalid logging level: %s. Valid levels: %v", cfg.Logging.Level, validLogLevels)
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// String возвращает строковое представление конфигурации (без чувствительных данных)
func (c Config) String() string {
	return fmt.Sprintf("Config{Warehouse: {Driver: %s, Account: %s, User: %s, Warehouse: %s, Database: %s, Schema: %s, Password: [HIDDEN]}, Runner: %+v, Storage: {Type: %s, BasePath: %s, Bucket: %s}, DB: {Enabled: %t, Driver: %s, DSN: [HIDDEN]}, Cache: {Enabled: %t, Addr: %s}, Logging: %+v}",
		c.Warehouse.Driver, c.Warehouse.Account, c.Warehouse.User, c.Warehouse.Warehouse,
		c.Warehouse.Database, c.Warehouse.Schema, c.Runner,
		c.Storage.Type, c.Storage.BasePath, c.Storage.S3.Bucket,
		c.DB.Enabled, c.DB.Driver, c.Cache.Enabled, c.Cache.Addr, c.Logging)
}
