package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mcp-browser-bridge/backend/internal/bridge"
	"github.com/mcp-browser-bridge/backend/internal/model"
	"github.com/mcp-browser-bridge/backend/internal/ws"
)

// WebSocketHandler handles the WebSocket endpoints on both ends of a bridge.
type WebSocketHandler struct {
	bridgeManager *bridge.Manager
	wsHandler     *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(bridgeManager *bridge.Manager, wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{
		bridgeManager: bridgeManager,
		wsHandler:     wsHandler,
	}
}

// AttachRemote handles WS /api/bridges/:id/remote - the browser extension
// worker attaching as the bridge's remote connection.
func (h *WebSocketHandler) AttachRemote(c *gin.Context) {
	bctx, ok := h.activeBridge(c)
	if !ok {
		return
	}

	if _, err := h.wsHandler.AttachRemote(c.Writer, c.Request, bctx); err != nil {
		// Upgrade failures are already written to the response.
		return
	}
}

// AttachSession handles WS /api/bridges/:id/session - an MCP client
// connecting as the bridge's local session. A new session supersedes any
// existing one.
func (h *WebSocketHandler) AttachSession(c *gin.Context) {
	bctx, ok := h.activeBridge(c)
	if !ok {
		return
	}

	if _, err := h.wsHandler.AttachSession(c.Writer, c.Request, bctx); err != nil {
		return
	}
}

// activeBridge loads the live bridge context for the path parameter,
// enforcing existence, ownership and that the bridge is not closed.
func (h *WebSocketHandler) activeBridge(c *gin.Context) (*bridge.BridgeContext, bool) {
	bridgeID := c.Param("id")
	if bridgeID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Bridge ID is required")
		return nil, false
	}

	b, err := h.bridgeManager.Get(c.Request.Context(), bridgeID)
	if err != nil {
		if errors.Is(err, model.ErrBridgeNotFound) {
			sendError(c, http.StatusNotFound, "BRIDGE_NOT_FOUND", "Bridge "+bridgeID+" not found")
			return nil, false
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get bridge: "+err.Error())
		return nil, false
	}

	if b.UserID != getUserID(c) {
		sendError(c, http.StatusForbidden, "FORBIDDEN", "Access to bridge denied")
		return nil, false
	}

	if b.Status == model.BridgeStatusClosed {
		sendError(c, http.StatusBadRequest, "BRIDGE_CLOSED", "Bridge is closed")
		return nil, false
	}

	bctx, exists := h.bridgeManager.GetContext(bridgeID)
	if !exists {
		sendError(c, http.StatusNotFound, "BRIDGE_NOT_ACTIVE", "Bridge "+bridgeID+" has no active relay")
		return nil, false
	}

	return bctx, true
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/bridges/:id/remote", h.AttachRemote)
	rg.GET("/bridges/:id/session", h.AttachSession)
}
