package cache

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"f1report/internal/table"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKV struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failSet error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if m.failSet != nil {
		return redis.NewStatusResult("", m.failSet)
	}
	m.data[key] = string(value.([]byte))
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func newTestCache(kv *memoryKV) *RedisCache {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &RedisCache{client: kv, ttl: time.Hour, logger: logger}
}

func TestKeyIgnoresCommentsAndSemicolon(t *testing.T) {
	a := Key("SELECT 1 FROM t;")
	b := Key("SELECT 1 FROM t")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, keyPrefix))
	assert.NotEqual(t, a, Key("SELECT 2 FROM t"))
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMemoryKV()
	c := newTestCache(kv)

	_, ok, err := c.Get(ctx, "SELECT a FROM t")
	require.NoError(t, err)
	assert.False(t, ok)

	src, err := table.New([]string{"DRIVER_NAME", "TOTAL_POINTS"}, [][]any{{"Lewis Hamilton", "4639.5"}})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "SELECT a FROM t", src))
	assert.Equal(t, time.Hour, kv.ttls[Key("SELECT a FROM t")])

	got, ok, err := c.Get(ctx, "SELECT a FROM t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, src.Columns, got.Columns)
	assert.Equal(t, "Lewis Hamilton", got.Rows[0][0])

	require.NoError(t, got.Coerce("TOTAL_POINTS", table.KindFloat))
	assert.Equal(t, 4639.5, got.Rows[0][1])
}

func TestRedisCacheKeepsValueTypes(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(newMemoryKV())

	raceDate := time.Date(2021, 5, 9, 0, 0, 0, 0, time.UTC)
	src, err := table.New(
		[]string{"RACE_NAME", "RACE_DATE", "DRIVER_NAME", "OVERTAKES", "AVG", "SPRINT", "NOTE"},
		[][]any{{"Spanish Grand Prix", raceDate, "Lewis Hamilton", int64(12), 4.25, true, nil}},
	)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "SELECT * FROM overtakes", src))

	got, ok, err := c.Get(ctx, "SELECT * FROM overtakes")
	require.NoError(t, err)
	require.True(t, ok)
	row := got.Rows[0]

	require.IsType(t, time.Time{}, row[1])
	assert.True(t, raceDate.Equal(row[1].(time.Time)))
	assert.Equal(t, int64(12), row[3])
	assert.Equal(t, 4.25, row[4])
	assert.Equal(t, true, row[5])
	assert.Nil(t, row[6])
	assert.Equal(t, "Lewis Hamilton", row[2])
}

func TestRedisCacheUnknownKindIsMiss(t *testing.T) {
	kv := newMemoryKV()
	kv.data[Key("SELECT a FROM t")] = `{"columns":["A"],"rows":[[{"k":"x","v":1}]]}`

	_, ok, err := newTestCache(kv).Get(context.Background(), "SELECT a FROM t")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheCorruptEntryIsMiss(t *testing.T) {
	kv := newMemoryKV()
	kv.data[Key("SELECT a FROM t")] = "{not json"

	_, ok, err := newTestCache(kv).Get(context.Background(), "SELECT a FROM t")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheSetError(t *testing.T) {
	kv := newMemoryKV()
	kv.failSet = errors.New("READONLY")
	tbl, err := table.New([]string{"A"}, nil)
	require.NoError(t, err)

	err = newTestCache(kv).Set(context.Background(), "SELECT a FROM t", tbl)
	assert.Error(t, err)
}
