// Package bridge manages the lifecycle of relays between MCP client
// sessions and remote browser-extension workers.
package bridge

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcp-browser-bridge/backend/internal/inspect"
	"github.com/mcp-browser-bridge/backend/internal/logger"
	"github.com/mcp-browser-bridge/backend/internal/model"
	"github.com/mcp-browser-bridge/backend/internal/relay"
	"github.com/mcp-browser-bridge/backend/internal/repository"
	"github.com/mcp-browser-bridge/backend/internal/trace"
)

// BridgeContext holds the runtime context for a bridge.
type BridgeContext struct {
	Bridge    *model.Bridge
	Relay     *relay.Relay
	Tail      *trace.Tail
	Inspector *inspect.Inspector
	Log       *logger.TrafficLog

	mu      sync.Mutex
	closers []io.Closer
}

// TrackCloser registers a connection-level resource to close when the
// bridge is deleted.
func (c *BridgeContext) TrackCloser(cl io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, cl)
}

// closeTracked closes every tracked resource, best-effort.
func (c *BridgeContext) closeTracked() {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	for _, cl := range closers {
		if err := cl.Close(); err != nil {
			log.Printf("Error closing bridge resource: %v", err)
		}
	}
}

// Config holds configuration for the bridge manager.
type Config struct {
	LogDir            string
	MaxBridgesPerUser int
	TailCapacity      int
}

// Manager manages bridges.
type Manager struct {
	repo   *repository.BridgeRepository
	logDir string

	// Configuration
	maxBridgesPerUser int
	tailCapacity      int

	mu      sync.RWMutex
	bridges map[string]*BridgeContext
}

// NewManager creates a new bridge manager.
func NewManager(repo *repository.BridgeRepository, config Config) *Manager {
	if config.MaxBridgesPerUser == 0 {
		config.MaxBridgesPerUser = 10 // Default limit
	}
	if config.TailCapacity == 0 {
		config.TailCapacity = 64
	}

	return &Manager{
		repo:              repo,
		logDir:            config.LogDir,
		maxBridgesPerUser: config.MaxBridgesPerUser,
		tailCapacity:      config.TailCapacity,
		bridges:           make(map[string]*BridgeContext),
	}
}

// Create creates a new bridge.
func (m *Manager) Create(ctx context.Context, req *model.CreateBridgeRequest) (*model.Bridge, error) {
	// Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Check concurrent bridge limit
	activeCount, err := m.repo.CountActiveByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active bridges: %w", err)
	}
	if activeCount >= m.maxBridgesPerUser {
		return nil, fmt.Errorf("maximum active bridges (%d) reached for user", m.maxBridgesPerUser)
	}

	bridgeID := uuid.New().String()
	trafficLogPath := filepath.Join(m.logDir, fmt.Sprintf("%s.jsonl", bridgeID))

	now := time.Now()
	bridge := &model.Bridge{
		ID:             bridgeID,
		UserID:         req.UserID,
		Name:           req.Name,
		Status:         model.BridgeStatusDetached,
		TrafficLogPath: trafficLogPath,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	trafficLog, err := logger.NewTrafficLog(trafficLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open traffic log: %w", err)
	}
	if err := trafficLog.WriteHeader(bridgeID); err != nil {
		trafficLog.Close()
		return nil, fmt.Errorf("failed to write traffic log header: %w", err)
	}

	if err := m.repo.Create(ctx, bridge); err != nil {
		trafficLog.Close()
		return nil, fmt.Errorf("failed to persist bridge: %w", err)
	}

	r := relay.New()
	r.SetStateObserver(func(connected bool) {
		m.handleStateChange(bridgeID, connected)
	})

	bctx := &BridgeContext{
		Bridge:    bridge,
		Relay:     r,
		Tail:      trace.NewTail(m.tailCapacity),
		Inspector: inspect.NewInspector(),
		Log:       trafficLog,
	}

	m.mu.Lock()
	m.bridges[bridgeID] = bctx
	m.mu.Unlock()

	return bridge, nil
}

// Get retrieves a bridge by ID.
func (m *Manager) Get(ctx context.Context, id string) (*model.Bridge, error) {
	// Try to get from memory first
	m.mu.RLock()
	bctx, exists := m.bridges[id]
	m.mu.RUnlock()

	if exists {
		return bctx.Bridge, nil
	}

	return m.repo.GetByID(ctx, id)
}

// GetContext retrieves the bridge runtime context.
func (m *Manager) GetContext(id string) (*BridgeContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bctx, exists := m.bridges[id]
	return bctx, exists
}

// List retrieves all bridges for a user.
func (m *Manager) List(ctx context.Context, userID string) ([]*model.Bridge, error) {
	return m.repo.List(ctx, userID)
}

// Delete closes and removes a bridge.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	bctx, exists := m.bridges[id]
	if exists {
		delete(m.bridges, id)
	}
	m.mu.Unlock()

	if exists {
		// Detach the relay first so no further traffic is routed, then
		// retire the active session and tear down the tracked sockets.
		bctx.Relay.SetConnection(nil)
		bctx.Relay.Connect(nil)
		bctx.closeTracked()
		if err := bctx.Log.Close(); err != nil {
			log.Printf("Error closing traffic log: %v", err)
		}

		bctx.Bridge.Status = model.BridgeStatusClosed
		bctx.Bridge.UpdatedAt = time.Now()
	}

	if err := m.repo.UpdateStatus(ctx, id, model.BridgeStatusClosed, nil); err != nil {
		return err
	}

	return nil
}

// handleStateChange persists remote connectivity transitions observed by a
// relay. The relay's IsConnected stays the authority; this bookkeeping only
// feeds listings and diagnostics.
func (m *Manager) handleStateChange(bridgeID string, connected bool) {
	ctx := context.Background()

	m.mu.RLock()
	bctx, exists := m.bridges[bridgeID]
	m.mu.RUnlock()
	if !exists {
		return
	}

	status := model.BridgeStatusDetached
	var attachedAt *time.Time
	if connected {
		status = model.BridgeStatusConnected
		ts := bctx.Relay.AttachedAt()
		attachedAt = &ts
	}

	if err := m.repo.UpdateStatus(ctx, bridgeID, status, attachedAt); err != nil {
		log.Printf("Failed to update bridge status: %v", err)
	}

	bctx.mu.Lock()
	bctx.Bridge.Status = status
	bctx.Bridge.RemoteAttachedAt = attachedAt
	bctx.Bridge.UpdatedAt = time.Now()
	bctx.mu.Unlock()
}

// Status is a live snapshot of one bridge.
type Status struct {
	Bridge     *model.Bridge `json:"bridge"`
	Connected  bool          `json:"connected"`
	HasSession bool          `json:"hasSession"`
	Stats      inspect.Stats `json:"stats"`
}

// Status reports the live state of a bridge. Connected comes straight from
// the relay's authoritative check.
func (m *Manager) Status(ctx context.Context, id string) (*Status, error) {
	m.mu.RLock()
	bctx, exists := m.bridges[id]
	m.mu.RUnlock()

	if !exists {
		bridge, err := m.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Status{Bridge: bridge}, nil
	}

	return &Status{
		Bridge:     bctx.Bridge,
		Connected:  bctx.Relay.IsConnected(),
		HasSession: bctx.Relay.HasSession(),
		Stats:      bctx.Inspector.Snapshot(),
	}, nil
}

// GetActiveCount returns the number of active bridges for a user.
func (m *Manager) GetActiveCount(ctx context.Context, userID string) (int, error) {
	return m.repo.CountActiveByUser(ctx, userID)
}

// GetMaxBridgesPerUser returns the maximum allowed bridges per user.
func (m *Manager) GetMaxBridgesPerUser() int {
	return m.maxBridgesPerUser
}

// Close closes all bridges and releases resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	bridges := make([]*BridgeContext, 0, len(m.bridges))
	for id, bctx := range m.bridges {
		bridges = append(bridges, bctx)
		delete(m.bridges, id)
	}
	m.mu.Unlock()

	for _, bctx := range bridges {
		bctx.Relay.SetConnection(nil)
		bctx.Relay.Connect(nil)
		bctx.closeTracked()
		if err := bctx.Log.Close(); err != nil {
			log.Printf("Error closing traffic log: %v", err)
		}
	}
	return nil
}
