package cache

import (
	"context"
	"io"
	"time"
)

// LayeredCache keeps hot entries in process (L1) in front of a shared cache
// (L2). Writes go to L2 first; reads fill L1 from L2.
type LayeredCache struct {
	l1    *TTLCache
	l2    BytesCache
	l1TTL time.Duration
}

// NewLayeredCache fronts l2 with an in-process cache whose entries live at
// most l1TTL.
func NewLayeredCache(l2 BytesCache, l1TTL time.Duration) *LayeredCache {
	return &LayeredCache{l1: NewTTLCache(), l2: l2, l1TTL: l1TTL}
}

func (c *LayeredCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, _ := c.l1.GetBytes(ctx, key); ok {
		return b, true, nil
	}
	b, ok, err := c.l2.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.l1.SetBytes(ctx, key, b, c.l1TTL)
	return b, true, nil
}

func (c *LayeredCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.SetBytes(ctx, key, value, ttl); err != nil {
		return err
	}
	l1TTL := c.l1TTL
	if l1TTL <= 0 || (ttl > 0 && ttl < l1TTL) {
		l1TTL = ttl
	}
	return c.l1.SetBytes(ctx, key, value, l1TTL)
}

func (c *LayeredCache) Delete(ctx context.Context, key string) error {
	_ = c.l1.Delete(ctx, key)
	return c.l2.Delete(ctx, key)
}

// Sweep drops expired L1 entries. L2 expires its own keys.
func (c *LayeredCache) Sweep() int { return c.l1.Sweep() }

// Ping checks L2 when it supports it.
func (c *LayeredCache) Ping(ctx context.Context) error {
	if p, ok := c.l2.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close drops L1 and closes L2 when it is closable.
func (c *LayeredCache) Close() error {
	c.l1.mu.Lock()
	c.l1.m = make(map[string]entry)
	c.l1.mu.Unlock()
	if closer, ok := c.l2.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

var _ BytesCache = (*LayeredCache)(nil)
