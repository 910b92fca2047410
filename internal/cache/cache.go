package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"f1report/internal/config"
	"f1report/internal/domain/query"
	"f1report/internal/table"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "f1report:result:v2:"

// Cache stores query results between runs.
type Cache interface {
	Get(ctx context.Context, sql string) (*table.Table, bool, error)
	Set(ctx context.Context, sql string, t *table.Table) error
}

// kv is the part of the redis client the cache needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache keeps result tables in Redis under a hash of the query text.
type RedisCache struct {
	client kv
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedis подключается к Redis и проверяет соединение.
func NewRedis(ctx context.Context, cfg config.Cache, logger *logrus.Logger) (*RedisCache, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("could not connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: rdb, ttl: cfg.TTL, logger: logger}, rdb, nil
}

// Key returns the cache key for a query.
func Key(sql string) string {
	sum := sha256.Sum256([]byte(query.Normalize(sql)))
	return keyPrefix + hex.EncodeToString(sum[:])
}

type entry struct {
	Columns []string `json:"columns"`
	Rows    [][]cell `json:"rows"`
}

// cell keeps the Go type of a driver value next to its JSON encoding, so a
// cached table decodes to the same types the warehouse returned.
type cell struct {
	Kind  string          `json:"k"`
	Value json.RawMessage `json:"v,omitempty"`
}

const (
	kindNull   = "null"
	kindString = "s"
	kindInt    = "i"
	kindFloat  = "f"
	kindBool   = "b"
	kindTime   = "t"
)

func encodeCell(v any) (cell, error) {
	var (
		kind string
		val  any
	)
	switch x := v.(type) {
	case nil:
		return cell{Kind: kindNull}, nil
	case string:
		kind, val = kindString, x
	case []byte:
		kind, val = kindString, string(x)
	case bool:
		kind, val = kindBool, x
	case int:
		kind, val = kindInt, int64(x)
	case int8:
		kind, val = kindInt, int64(x)
	case int16:
		kind, val = kindInt, int64(x)
	case int32:
		kind, val = kindInt, int64(x)
	case int64:
		kind, val = kindInt, x
	case uint8:
		kind, val = kindInt, int64(x)
	case uint16:
		kind, val = kindInt, int64(x)
	case uint32:
		kind, val = kindInt, int64(x)
	case float32:
		kind, val = kindFloat, float64(x)
	case float64:
		kind, val = kindFloat, x
	case time.Time:
		kind, val = kindTime, x
	default:
		kind, val = kindString, fmt.Sprint(x)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return cell{}, err
	}
	return cell{Kind: kind, Value: raw}, nil
}

func decodeCell(c cell) (any, error) {
	var err error
	switch c.Kind {
	case kindNull:
		return nil, nil
	case kindString:
		var s string
		err = json.Unmarshal(c.Value, &s)
		return s, err
	case kindInt:
		var n int64
		err = json.Unmarshal(c.Value, &n)
		return n, err
	case kindFloat:
		var f float64
		err = json.Unmarshal(c.Value, &f)
		return f, err
	case kindBool:
		var b bool
		err = json.Unmarshal(c.Value, &b)
		return b, err
	case kindTime:
		var t time.Time
		err = json.Unmarshal(c.Value, &t)
		return t, err
	default:
		return nil, fmt.Errorf("unknown cell kind %q", c.Kind)
	}
}

// Get returns the cached table for a query, if present.
func (c *RedisCache) Get(ctx context.Context, sql string) (*table.Table, bool, error) {
	raw, err := c.client.Get(ctx, Key(sql)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	t, err := decodeEntry(raw)
	if err != nil {
		c.logger.WithError(err).Warn("Повреждённая запись кэша, запрос будет выполнен заново")
		return nil, false, nil
	}
	return t, true, nil
}

func decodeEntry(raw []byte) (*table.Table, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	rows := make([][]any, len(e.Rows))
	for i, r := range e.Rows {
		row := make([]any, len(r))
		for j, c := range r {
			v, err := decodeCell(c)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return table.New(e.Columns, rows)
}

// Set stores a raw query result.
func (c *RedisCache) Set(ctx context.Context, sql string, t *table.Table) error {
	e := entry{Columns: t.Columns, Rows: make([][]cell, len(t.Rows))}
	for i, r := range t.Rows {
		row := make([]cell, len(r))
		for j, v := range r {
			enc, err := encodeCell(v)
			if err != nil {
				return fmt.Errorf("cache encode: %w", err)
			}
			row[j] = enc
		}
		e.Rows[i] = row
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, Key(sql), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
