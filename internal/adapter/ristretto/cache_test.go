package ristretto

import (
	"context"
	"testing"
	"time"
)

func TestCache(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "consultant:acme:1", []byte(`{"id":"1"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, ok, err := c.Get(ctx, "consultant:acme:1")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(val) != `{"id":"1"}` {
		t.Fatalf("unexpected value %s", val)
	}

	if err := c.Delete(ctx, "consultant:acme:1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "consultant:acme:1"); ok {
		t.Fatal("expected miss after delete")
	}
	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}
