package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/recserve/core"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	if _, err := ms.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get missing key: err = %v, want not found", err)
	}

	if err := ms.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := ms.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := ms.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ms.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get after delete: err = %v, want not found", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	if err := ms.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := ms.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := ms.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get after expiry: err = %v, want not found", err)
	}
}
