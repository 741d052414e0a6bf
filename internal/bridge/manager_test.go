package bridge

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/mcp-browser-bridge/backend/internal/db"
	"github.com/mcp-browser-bridge/backend/internal/model"
	"github.com/mcp-browser-bridge/backend/internal/repository"
)

func setupTestManager(t *testing.T, config Config) *Manager {
	t.Helper()
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })

	if config.LogDir == "" {
		config.LogDir = t.TempDir()
	}

	m := NewManager(repository.NewBridgeRepository(testDB), config)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerCreate(t *testing.T) {
	m := setupTestManager(t, Config{})
	ctx := context.Background()

	b, err := m.Create(ctx, &model.CreateBridgeRequest{Name: "dev tools", UserID: "alice"})
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}
	if b.ID == "" {
		t.Error("expected a generated bridge ID")
	}
	if b.Status != model.BridgeStatusDetached {
		t.Errorf("expected detached status, got %s", b.Status)
	}

	// The traffic log is opened with its header on creation.
	if _, err := os.Stat(b.TrafficLogPath); err != nil {
		t.Errorf("expected traffic log file at %s: %v", b.TrafficLogPath, err)
	}

	bctx, exists := m.GetContext(b.ID)
	if !exists {
		t.Fatal("expected a runtime context for the new bridge")
	}
	if bctx.Relay == nil || bctx.Tail == nil || bctx.Inspector == nil || bctx.Log == nil {
		t.Error("expected fully initialized bridge context")
	}
	if bctx.Relay.IsConnected() {
		t.Error("new bridge must not report a remote connection")
	}
}

func TestManagerCreateValidation(t *testing.T) {
	m := setupTestManager(t, Config{})
	ctx := context.Background()

	_, err := m.Create(ctx, &model.CreateBridgeRequest{Name: "", UserID: "alice"})
	if !errors.Is(err, model.ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
}

func TestManagerConcurrencyLimit(t *testing.T) {
	m := setupTestManager(t, Config{MaxBridgesPerUser: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := m.Create(ctx, &model.CreateBridgeRequest{Name: "bridge", UserID: "bob"}); err != nil {
			t.Fatalf("failed to create bridge %d: %v", i, err)
		}
	}

	_, err := m.Create(ctx, &model.CreateBridgeRequest{Name: "one too many", UserID: "bob"})
	if err == nil || !strings.Contains(err.Error(), "maximum active bridges") {
		t.Errorf("expected concurrency limit error, got %v", err)
	}

	// Other users are unaffected.
	if _, err := m.Create(ctx, &model.CreateBridgeRequest{Name: "bridge", UserID: "carol"}); err != nil {
		t.Errorf("limit leaked across users: %v", err)
	}
}

func TestManagerDelete(t *testing.T) {
	m := setupTestManager(t, Config{MaxBridgesPerUser: 1})
	ctx := context.Background()

	b, err := m.Create(ctx, &model.CreateBridgeRequest{Name: "bridge", UserID: "dave"})
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}

	if err := m.Delete(ctx, b.ID); err != nil {
		t.Fatalf("failed to delete bridge: %v", err)
	}

	if _, exists := m.GetContext(b.ID); exists {
		t.Error("expected runtime context to be removed")
	}

	got, err := m.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("failed to get deleted bridge: %v", err)
	}
	if got.Status != model.BridgeStatusClosed {
		t.Errorf("expected closed status, got %s", got.Status)
	}

	// Deleting frees the slot counted against the user's limit.
	if _, err := m.Create(ctx, &model.CreateBridgeRequest{Name: "replacement", UserID: "dave"}); err != nil {
		t.Errorf("expected slot to be freed after delete: %v", err)
	}
}

func TestManagerStatus(t *testing.T) {
	m := setupTestManager(t, Config{})
	ctx := context.Background()

	b, err := m.Create(ctx, &model.CreateBridgeRequest{Name: "bridge", UserID: "erin"})
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}

	status, err := m.Status(ctx, b.ID)
	if err != nil {
		t.Fatalf("failed to get status: %v", err)
	}
	if status.Connected || status.HasSession {
		t.Error("fresh bridge must report no connection and no session")
	}
	if status.Bridge.ID != b.ID {
		t.Errorf("status for wrong bridge: %s", status.Bridge.ID)
	}

	if _, err := m.Status(ctx, "missing"); !errors.Is(err, model.ErrBridgeNotFound) {
		t.Errorf("expected ErrBridgeNotFound, got %v", err)
	}
}
