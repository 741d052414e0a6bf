package model

import "time"

// BridgeStatus represents the status of a bridge.
type BridgeStatus string

const (
	// BridgeStatusDetached means no remote worker is attached.
	BridgeStatusDetached BridgeStatus = "detached"
	// BridgeStatusConnected means a remote worker connection is live.
	BridgeStatusConnected BridgeStatus = "connected"
	// BridgeStatusClosed means the bridge was deleted and accepts no traffic.
	BridgeStatusClosed BridgeStatus = "closed"
)

// Bridge represents one relay between MCP client sessions and a remote
// browser-extension worker.
type Bridge struct {
	ID               string       `json:"id"`
	UserID           string       `json:"userId"`
	Name             string       `json:"name"`
	Status           BridgeStatus `json:"status"`
	RemoteAttachedAt *time.Time   `json:"remoteAttachedAt,omitempty"`
	TrafficLogPath   string       `json:"trafficLogPath"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Age returns how long ago the bridge was created.
func (b *Bridge) Age() time.Duration {
	return time.Since(b.CreatedAt)
}

// CreateBridgeRequest represents a request to create a new bridge.
type CreateBridgeRequest struct {
	Name   string `json:"name" binding:"required"`
	UserID string `json:"-"`
}

// Validate validates the create bridge request.
func (r *CreateBridgeRequest) Validate() error {
	if r.Name == "" {
		return ErrNameRequired
	}
	return nil
}
