package cache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is running.
// Integration tests under tests/integration use testcontainers-go instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func nodeKey(id string) Key {
	return Key{
		Endpoint:    "/ajax/folders",
		QueryParams: url.Values{"id": []string{id}},
	}
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client, WithDefaultTTL(2*time.Minute), WithStaleGrace(0))
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.DefaultTTL() != 2*time.Minute {
		t.Errorf("DefaultTTL() = %v, want 2m", manager.DefaultTTL())
	}
	if manager.staleGrace != 0 {
		t.Errorf("staleGrace = %v, want 0", manager.staleGrace)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := nodeKey("folder-4")

	entry := &Entry{
		Data:       []byte(`[{"id":"folder-9","parent":"folder-4","text":"Beach"}]`),
		ETag:       `"abc123"`,
		Expires:    time.Now().Add(5 * time.Minute),
		StatusCode: 200,
		CachedAt:   time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(retrieved.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
	}
	if retrieved.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", retrieved.ETag, entry.ETag)
	}
	if retrieved.IsExpired() {
		t.Error("Fresh entry reported as expired")
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), nodeKey("folder-404"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_ExpiredEntryNotStored(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := nodeKey("folder-1")

	entry := &Entry{
		Data:    []byte(`[]`),
		ETag:    `"old"`,
		Expires: time.Now().Add(-time.Hour),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Get_StaleEntryWithinGrace(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := nodeKey("folder-2")

	entry := &Entry{
		Data:    []byte(`[]`),
		ETag:    `"v1"`,
		Expires: time.Now().Add(1500 * time.Millisecond),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(2 * time.Second)

	stale, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get of stale entry failed: %v", err)
	}
	if !stale.IsExpired() {
		t.Error("Expected entry to be expired")
	}

	// Revalidation brings it back to fresh
	if err := manager.Refresh(ctx, key, stale, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	fresh, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after Refresh failed: %v", err)
	}
	if fresh.IsExpired() {
		t.Error("Entry still expired after Refresh")
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := nodeKey("folder-3")

	entry := &Entry{
		Data:    []byte(`[]`),
		Expires: time.Now().Add(5 * time.Minute),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	if err := manager.Set(ctx, nodeKey("x"), nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
	if err := manager.Refresh(ctx, nodeKey("x"), nil, time.Now()); err == nil {
		t.Error("Refresh with nil entry should return error")
	}
}
