package probecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Cloud evaluations improve over time, tablebase verdicts never
	// change; both are safe to serve from cache for a while.
	ttlCloudEval = 6 * time.Hour
	ttlTablebase = 7 * 24 * time.Hour
	ttlChessDB   = 6 * time.Hour
)

// Cache stores remote probe responses keyed by position, so repeated
// games through the same openings and endgames skip the network.
// A nil *Cache is a valid no-op cache.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

func keyCloud(fen string) string     { return "probe:cloud:" + fen }
func keyTablebase(fen string) string { return "probe:tb:" + fen }
func keyChessDB(fen string) string   { return "probe:cdb:" + fen }

// GetCloudEval loads a cached cloud evaluation. (false, nil) means miss.
func (c *Cache) GetCloudEval(ctx context.Context, fen string, out any) (bool, error) {
	return c.get(ctx, keyCloud(fen), out)
}

func (c *Cache) PutCloudEval(ctx context.Context, fen string, value any) error {
	return c.put(ctx, keyCloud(fen), value, ttlCloudEval)
}

func (c *Cache) GetTablebase(ctx context.Context, fen string, out any) (bool, error) {
	return c.get(ctx, keyTablebase(fen), out)
}

func (c *Cache) PutTablebase(ctx context.Context, fen string, value any) error {
	return c.put(ctx, keyTablebase(fen), value, ttlTablebase)
}

func (c *Cache) GetChessDB(ctx context.Context, fen string, out any) (bool, error) {
	return c.get(ctx, keyChessDB(fen), out)
}

func (c *Cache) PutChessDB(ctx context.Context, fen string, value any) error {
	return c.put(ctx, keyChessDB(fen), value, ttlChessDB)
}

func (c *Cache) get(ctx context.Context, key string, out any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) put(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}
