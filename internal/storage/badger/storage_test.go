package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := NewManager(logger, &common.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create storage manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestSessionStorageRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	storage := manager.SessionStorage()
	ctx := context.Background()

	session := &models.Session{
		ID: "sess-1",
		Turns: []models.ConversationTurn{
			{Role: "user", Content: "draft a claim for a widget"},
			{Role: "assistant", Content: "1. A widget comprising..."},
		},
	}
	if err := storage.Store(ctx, session); err != nil {
		t.Fatalf("Failed to store session: %v", err)
	}

	got, err := storage.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if len(got.Turns) != 2 {
		t.Errorf("Expected 2 turns, got %d", len(got.Turns))
	}
	if got.Turns[0].Content != "draft a claim for a widget" {
		t.Errorf("Unexpected first turn content: %s", got.Turns[0].Content)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set on store")
	}
}

func TestSessionStoragePreservesCreatedAt(t *testing.T) {
	manager := newTestManager(t)
	storage := manager.SessionStorage()
	ctx := context.Background()

	session := &models.Session{ID: "sess-2"}
	if err := storage.Store(ctx, session); err != nil {
		t.Fatalf("Failed to store session: %v", err)
	}
	created := session.CreatedAt

	// Second store with a zero CreatedAt must keep the original
	update := &models.Session{
		ID:    "sess-2",
		Turns: []models.ConversationTurn{{Role: "user", Content: "hello"}},
	}
	if err := storage.Store(ctx, update); err != nil {
		t.Fatalf("Failed to update session: %v", err)
	}

	got, err := storage.Get(ctx, "sess-2")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: was %v, now %v", created, got.CreatedAt)
	}
}

func TestSessionStorageGetMissing(t *testing.T) {
	manager := newTestManager(t)
	storage := manager.SessionStorage()

	_, err := storage.Get(context.Background(), "no-such-session")
	if err != interfaces.ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestSessionStorageDeleteOlderThan(t *testing.T) {
	manager := newTestManager(t)
	storage := manager.SessionStorage()
	ctx := context.Background()

	old := &models.Session{
		ID:        "sess-old",
		CreatedAt: time.Now().Add(-48 * time.Hour),
		UpdatedAt: time.Now().Add(-48 * time.Hour),
	}
	fresh := &models.Session{ID: "sess-fresh"}
	if err := storage.Store(ctx, old); err != nil {
		t.Fatalf("Failed to store old session: %v", err)
	}
	if err := storage.Store(ctx, fresh); err != nil {
		t.Fatalf("Failed to store fresh session: %v", err)
	}

	removed, err := storage.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete stale sessions: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed session, got %d", removed)
	}

	if _, err := storage.Get(ctx, "sess-old"); err != interfaces.ErrKeyNotFound {
		t.Errorf("Expected old session to be gone, got %v", err)
	}
	if _, err := storage.Get(ctx, "sess-fresh"); err != nil {
		t.Errorf("Expected fresh session to remain, got %v", err)
	}
}

func TestCacheStorageRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	cache := manager.CacheStorage()
	ctx := context.Background()

	if err := cache.Set(ctx, "query-hash", []byte("cached markdown"), time.Minute); err != nil {
		t.Fatalf("Failed to set cache entry: %v", err)
	}

	value, err := cache.Get(ctx, "query-hash")
	if err != nil {
		t.Fatalf("Failed to get cache entry: %v", err)
	}
	if string(value) != "cached markdown" {
		t.Errorf("Unexpected cache value: %s", value)
	}
}

func TestCacheStorageMiss(t *testing.T) {
	manager := newTestManager(t)
	cache := manager.CacheStorage()

	_, err := cache.Get(context.Background(), "absent")
	if err != interfaces.ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestCacheStorageExpiry(t *testing.T) {
	manager := newTestManager(t)
	cache := manager.CacheStorage()
	ctx := context.Background()

	if err := cache.Set(ctx, "short-lived", []byte("x"), 50*time.Millisecond); err != nil {
		t.Fatalf("Failed to set cache entry: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := cache.Get(ctx, "short-lived"); err != interfaces.ErrKeyNotFound {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
}

func TestCacheStorageDelete(t *testing.T) {
	manager := newTestManager(t)
	cache := manager.CacheStorage()
	ctx := context.Background()

	if err := cache.Set(ctx, "to-delete", []byte("x"), 0); err != nil {
		t.Fatalf("Failed to set cache entry: %v", err)
	}
	if err := cache.Delete(ctx, "to-delete"); err != nil {
		t.Fatalf("Failed to delete cache entry: %v", err)
	}
	if _, err := cache.Get(ctx, "to-delete"); err != interfaces.ErrKeyNotFound {
		t.Errorf("Expected deleted entry to miss, got %v", err)
	}
}
