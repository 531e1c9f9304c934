package cache

import (
	"context"
	"testing"
	"time"
)

func TestTTLCache(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()

	if _, ok, _ := c.GetBytes(ctx, "missing"); ok {
		t.Error("expected miss for unknown key")
	}

	if err := c.SetBytes(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	b, ok, err := c.GetBytes(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("GetBytes = (%q, %v, %v), want (v, true, nil)", b, ok, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.GetBytes(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()

	c.SetBytes(ctx, "short", []byte("v"), 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)
	if _, ok, _ := c.GetBytes(ctx, "short"); ok {
		t.Error("expected expiry")
	}

	// Zero TTL never expires.
	c.SetBytes(ctx, "pin", []byte("v"), 0)
	if _, ok, _ := c.GetBytes(ctx, "pin"); !ok {
		t.Error("zero-ttl entry should persist")
	}
}
