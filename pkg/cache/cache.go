// Package cache implements the content-addressed loader cache from §5
// "Filesystem cache": a collaborator keyed by (loader_name, hash(args))
// that load_file-style operators may consult before re-reading a source.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quantengine/pkg/quantity"
	"quantengine/pkg/unit"
)

// Loader is the cache contract Computer.WithCache decorates a computation
// with. Implementations must treat reads/writes as atomic per entry; the
// core assumes a single writer per entry, per §5's shared-resources note.
type Loader interface {
	Get(ctx context.Context, loaderName, argsHash string) (quantity.Quantity, bool, error)
	Put(ctx context.Context, loaderName, argsHash string, q quantity.Quantity, ttl time.Duration) error
}

// HashArgs derives the content-address for a loader call from its
// already-stringified argument list, so callers never need to know how
// the hash is computed.
func HashArgs(args []string) string {
	h := sha256.New()
	for _, a := range args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// entry is the wire shape stored in Redis: the tabular long-format rows
// plus unit/name metadata, so a cached Quantity round-trips through
// quantity.FromSeries (its dims come back in sorted order).
type entry struct {
	Name string          `json:"name"`
	Unit string          `json:"unit"`
	Rows []quantity.Row  `json:"rows"`
}

// RedisLoader is a Redis-backed Loader: a keyed JSON blob with a TTL,
// written through client.Set and read back with redis.Nil treated as a
// cache miss rather than an error.
type RedisLoader struct {
	client *redis.Client
	prefix string
	reg    *unit.Registry
}

// NewRedisLoader constructs a RedisLoader. prefix namespaces keys in a
// shared Redis instance (e.g. "quantengine:cache:"); reg resolves a
// cached entry's unit expression back into a unit.Unit on read.
func NewRedisLoader(client *redis.Client, reg *unit.Registry, prefix string) *RedisLoader {
	if prefix == "" {
		prefix = "quantengine:cache:"
	}
	return &RedisLoader{client: client, prefix: prefix, reg: reg}
}

func (c *RedisLoader) key(loaderName, argsHash string) string {
	return c.prefix + loaderName + ":" + argsHash
}

func (c *RedisLoader) Get(ctx context.Context, loaderName, argsHash string) (quantity.Quantity, bool, error) {
	raw, err := c.client.Get(ctx, c.key(loaderName, argsHash)).Result()
	if err == redis.Nil {
		return quantity.Quantity{}, false, nil
	}
	if err != nil {
		return quantity.Quantity{}, false, fmt.Errorf("cache get %s/%s: %w", loaderName, argsHash, err)
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return quantity.Quantity{}, false, fmt.Errorf("cache decode %s/%s: %w", loaderName, argsHash, err)
	}
	u, err := c.reg.Lookup(e.Unit)
	if err != nil {
		return quantity.Quantity{}, false, err
	}
	q, err := quantity.FromSeries(e.Name, e.Rows, u)
	if err != nil {
		return quantity.Quantity{}, false, err
	}
	return q, true, nil
}

func (c *RedisLoader) Put(ctx context.Context, loaderName, argsHash string, q quantity.Quantity, ttl time.Duration) error {
	e := entry{Name: q.Name(), Unit: q.Units().String(), Rows: q.ToSeries()}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache encode %s/%s: %w", loaderName, argsHash, err)
	}
	if err := c.client.Set(ctx, c.key(loaderName, argsHash), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache put %s/%s: %w", loaderName, argsHash, err)
	}
	return nil
}
