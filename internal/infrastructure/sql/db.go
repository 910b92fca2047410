package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"f1report/internal/config"
	"f1report/internal/domain/query"
	"f1report/internal/table"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	sf "github.com/snowflakedb/gosnowflake"
)

// DB wraps *sql.DB and runs report queries against the warehouse.
type DB struct {
	*sql.DB
}

// Open connects to the warehouse and verifies the connection with a ping.
func Open(ctx context.Context, cfg config.Warehouse) (*DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s warehouse: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := cfg.LoginTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s warehouse: %w", cfg.Driver, err)
	}

	return &DB{DB: db}, nil
}

// DSN builds the driver connection string. An explicit DSN wins.
func DSN(cfg config.Warehouse) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.Driver != "snowflake" {
		return "", fmt.Errorf("warehouse dsn is required for driver %q", cfg.Driver)
	}

	dsn, err := sf.DSN(&sf.Config{
		Account:      cfg.Account,
		User:         cfg.User,
		Password:     cfg.Password,
		Warehouse:    cfg.Warehouse,
		Database:     cfg.Database,
		Schema:       cfg.Schema,
		Role:         cfg.Role,
		LoginTimeout: cfg.LoginTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("build snowflake dsn: %w", err)
	}
	return dsn, nil
}

// Execute runs a query and returns its rows as a table keyed by driver column names.
func (d *DB) Execute(ctx context.Context, q query.Query) (*table.Table, error) {
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	rows, err := d.QueryContext(ctx, query.Normalize(q.SQL), q.Params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	results := make([][]any, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range ptrs {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, normalizeValues(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return table.New(cols, results)
}

func normalizeValues(values []any) []any {
	for i, value := range values {
		if b, ok := value.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values
}
