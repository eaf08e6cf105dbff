package layout

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

// failingStore rejects every write.
type failingStore struct{ *MemoryStore }

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("quota exceeded")
}

func TestSidebar_Restore(t *testing.T) {
	tests := []struct {
		name      string
		stored    map[string]string
		wantWidth int
		wantOpen  bool
		wantSaved string
	}{
		{"empty store", nil, DefaultWidth, false, "120"},
		{"stored open", map[string]string{KeyWidth: "200", KeyStatus: "1"}, 200, true, "200"},
		{"stored closed", map[string]string{KeyWidth: "200", KeyStatus: "0"}, 200, false, "200"},
		{"garbage width", map[string]string{KeyWidth: "wide"}, DefaultWidth, false, "120"},
		{"width below collapsed", map[string]string{KeyWidth: "10"}, DefaultWidth, false, "120"},
		{"boolean status", map[string]string{KeyStatus: "true"}, DefaultWidth, true, "120"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			for k, v := range tt.stored {
				store.Set(ctx, k, v)
			}

			s := NewSidebar(store)
			if err := s.Restore(ctx); err != nil {
				t.Fatalf("Restore() error = %v", err)
			}
			if s.Width() != tt.wantWidth {
				t.Errorf("Width() = %d, want %d", s.Width(), tt.wantWidth)
			}
			if s.IsOpen() != tt.wantOpen {
				t.Errorf("IsOpen() = %v, want %v", s.IsOpen(), tt.wantOpen)
			}
			if got, _, _ := store.Get(ctx, KeyWidth); got != tt.wantSaved {
				t.Errorf("stored width = %q, want %q", got, tt.wantSaved)
			}
		})
	}
}

func TestSidebar_Geometry(t *testing.T) {
	ctx := context.Background()
	s := NewSidebar(NewMemoryStore())
	if err := s.Restore(ctx); err != nil {
		t.Fatal(err)
	}

	closed := s.Geometry()
	want := Geometry{Open: false, SidebarWidth: 32, HandleLeft: 32, MainMargin: 64}
	if closed != want {
		t.Errorf("closed Geometry() = %+v, want %+v", closed, want)
	}

	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}
	want = Geometry{Open: true, SidebarWidth: 120, HandleLeft: 120, MainMargin: 152}
	if got := s.Geometry(); got != want {
		t.Errorf("open Geometry() = %+v, want %+v", got, want)
	}
}

func TestSidebar_ClosePersistsClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSidebar(store)

	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}

	restored := NewSidebar(store)
	if err := restored.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if restored.IsOpen() {
		t.Error("closed sidebar reopened after restore")
	}
}

func TestSidebar_Toggle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSidebar(store)

	for i, want := range []bool{true, false, true} {
		open, err := s.Toggle(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if open != want {
			t.Errorf("toggle %d: open = %v, want %v", i, open, want)
		}
	}
	if got, _, _ := store.Get(ctx, KeyStatus); got != "1" {
		t.Errorf("stored status = %q, want 1", got)
	}
}

func TestSidebar_Resize(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSidebar(store)
	if err := s.Restore(ctx); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		offset int
		want   int
	}{
		{"grow", 40, 160},
		{"shrink", -60, 100},
		{"clamped", -500, CollapsedWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Resize(ctx, tt.offset); err != nil {
				t.Fatal(err)
			}
			if s.Width() != tt.want {
				t.Errorf("Width() = %d, want %d", s.Width(), tt.want)
			}
		})
	}

	if err := s.SetWidth(ctx, 250); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := store.Get(ctx, KeyWidth); got != "250" {
		t.Errorf("stored width = %q, want 250", got)
	}
}

func TestSidebar_StoreFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s := NewSidebar(&failingStore{MemoryStore: NewMemoryStore()})

	if err := s.Open(ctx); err == nil {
		t.Fatal("expected error from failing store")
	}
	if s.IsOpen() {
		t.Error("state changed although it was not stored")
	}
	if err := s.Resize(ctx, 10); err == nil {
		t.Fatal("expected error from failing store")
	}
	if s.Width() != DefaultWidth {
		t.Errorf("Width() = %d, want %d", s.Width(), DefaultWidth)
	}
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
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

func TestRedisStore(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	alice := NewRedisStore(client, "alice")
	bob := NewRedisStore(client, "bob")

	if _, ok, err := alice.Get(ctx, KeyWidth); err != nil || ok {
		t.Fatalf("Get() on empty store = %v, %v", ok, err)
	}

	s := NewSidebar(alice)
	if err := s.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.SetWidth(ctx, 300); err != nil {
		t.Fatal(err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}

	restored := NewSidebar(alice)
	if err := restored.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if restored.Width() != 300 || !restored.IsOpen() {
		t.Errorf("restored = %d/%v, want 300/true", restored.Width(), restored.IsOpen())
	}

	if _, ok, _ := bob.Get(ctx, KeyWidth); ok {
		t.Error("scopes must not share keys")
	}
	if n, _ := client.Exists(ctx, "browser:layout:alice:sidebarWidth").Result(); n != 1 {
		t.Errorf("expected namespaced key in Redis")
	}
}
