package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// RistrettoCache adapts dgraph-io/ristretto to Cache. Every entry costs 1,
// so maxItems bounds the entry count. Writes are applied asynchronously by
// ristretto; Set waits for them so a following Get sees the value.
type RistrettoCache[T any] struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func NewRistrettoCache[T any](maxItems int64, ttl time.Duration) (*RistrettoCache[T], error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &RistrettoCache[T]{c: c, ttl: ttl}, nil
}

func (r *RistrettoCache[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := r.c.Get(key)
	if !ok {
		return zero, false
	}
	data, ok := v.(T)
	if !ok {
		return zero, false
	}
	return data, true
}

func (r *RistrettoCache[T]) Set(key string, data T) {
	r.c.SetWithTTL(key, data, 1, r.ttl)
	r.c.Wait()
}

func (r *RistrettoCache[T]) Delete(key string) {
	r.c.Del(key)
}

func (r *RistrettoCache[T]) Clear() {
	r.c.Clear()
}

// Close stops ristretto's background goroutines.
func (r *RistrettoCache[T]) Close() {
	r.c.Close()
}
