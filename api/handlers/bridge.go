// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mcp-browser-bridge/backend/internal/bridge"
	"github.com/mcp-browser-bridge/backend/internal/model"
)

// BridgeHandler handles HTTP requests for bridge management.
type BridgeHandler struct {
	bridgeManager *bridge.Manager
}

// NewBridgeHandler creates a new BridgeHandler.
func NewBridgeHandler(bridgeManager *bridge.Manager) *BridgeHandler {
	return &BridgeHandler{
		bridgeManager: bridgeManager,
	}
}

// CreateBridgeRequest represents the request body for creating a bridge.
type CreateBridgeRequest struct {
	Name string `json:"name" binding:"required"`
}

// BridgeResponse represents a bridge in API responses.
type BridgeResponse struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	Connected        bool   `json:"connected"`
	HasSession       bool   `json:"hasSession"`
	RemoteAttachedAt string `json:"remoteAttachedAt,omitempty"`
	TrafficLogPath   string `json:"trafficLogPath"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// toBridgeResponse converts a model.Bridge to BridgeResponse. Connected and
// HasSession come from the relay when the bridge is live.
func (h *BridgeHandler) toBridgeResponse(b *model.Bridge) *BridgeResponse {
	resp := &BridgeResponse{
		ID:             b.ID,
		UserID:         b.UserID,
		Name:           b.Name,
		Status:         string(b.Status),
		TrafficLogPath: b.TrafficLogPath,
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339),
	}
	if b.RemoteAttachedAt != nil {
		resp.RemoteAttachedAt = b.RemoteAttachedAt.Format(time.RFC3339)
	}

	// The relay is the authority on liveness; the stored status only
	// reflects the last observed transition.
	if bctx, ok := h.bridgeManager.GetContext(b.ID); ok {
		resp.Connected = bctx.Relay.IsConnected()
		resp.HasSession = bctx.Relay.HasSession()
	}
	return resp
}

// getUserID extracts the user ID from the request context.
// In a real implementation, this would come from authentication middleware.
func getUserID(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	// Default user for development/testing
	return "default-user"
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// Create handles POST /api/bridges - creates a new bridge.
func (h *BridgeHandler) Create(c *gin.Context) {
	var req CreateBridgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	userID := getUserID(c)

	createReq := &model.CreateBridgeRequest{
		Name:   req.Name,
		UserID: userID,
	}

	b, err := h.bridgeManager.Create(c.Request.Context(), createReq)
	if err != nil {
		if errors.Is(err, model.ErrNameRequired) {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		if strings.Contains(err.Error(), "maximum active bridges") {
			sendError(c, http.StatusTooManyRequests, "LIMIT_EXCEEDED", err.Error())
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create bridge: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, h.toBridgeResponse(b))
}

// List handles GET /api/bridges - lists all bridges for the user.
func (h *BridgeHandler) List(c *gin.Context) {
	userID := getUserID(c)

	bridges, err := h.bridgeManager.List(c.Request.Context(), userID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list bridges: "+err.Error())
		return
	}

	response := make([]*BridgeResponse, len(bridges))
	for i, b := range bridges {
		response[i] = h.toBridgeResponse(b)
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/bridges/:id - gets a specific bridge.
func (h *BridgeHandler) Get(c *gin.Context) {
	b, ok := h.ownedBridge(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.toBridgeResponse(b))
}

// Status handles GET /api/bridges/:id/status - live bridge status including
// the authoritative connectivity check and traffic statistics.
func (h *BridgeHandler) Status(c *gin.Context) {
	b, ok := h.ownedBridge(c)
	if !ok {
		return
	}

	status, err := h.bridgeManager.Status(c.Request.Context(), b.ID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get bridge status: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, status)
}

// Trace handles GET /api/bridges/:id/trace - recent relay events.
func (h *BridgeHandler) Trace(c *gin.Context) {
	b, ok := h.ownedBridge(c)
	if !ok {
		return
	}

	bctx, exists := h.bridgeManager.GetContext(b.ID)
	if !exists {
		sendError(c, http.StatusNotFound, "BRIDGE_NOT_ACTIVE", "Bridge "+b.ID+" has no active relay")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bridgeId": b.ID,
		"entries":  bctx.Tail.Entries(),
	})
}

// Delete handles DELETE /api/bridges/:id - deletes a bridge.
func (h *BridgeHandler) Delete(c *gin.Context) {
	b, ok := h.ownedBridge(c)
	if !ok {
		return
	}

	if err := h.bridgeManager.Delete(c.Request.Context(), b.ID); err != nil {
		if errors.Is(err, model.ErrBridgeNotFound) {
			sendError(c, http.StatusNotFound, "BRIDGE_NOT_FOUND", "Bridge "+b.ID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete bridge: "+err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// GetLogs handles GET /api/bridges/:id/logs - downloads the traffic log.
func (h *BridgeHandler) GetLogs(c *gin.Context) {
	b, ok := h.ownedBridge(c)
	if !ok {
		return
	}

	if b.TrafficLogPath == "" {
		sendError(c, http.StatusNotFound, "LOG_NOT_FOUND", "Traffic log not found for bridge "+b.ID)
		return
	}

	c.Header("Content-Type", "application/jsonl")
	c.Header("Content-Disposition", "attachment; filename="+b.ID+".jsonl")
	c.File(b.TrafficLogPath)
}

// ownedBridge loads the bridge from the path parameter and enforces
// ownership; it writes the error response itself when it returns !ok.
func (h *BridgeHandler) ownedBridge(c *gin.Context) (*model.Bridge, bool) {
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

	return b, true
}

// RegisterRoutes registers the bridge handler routes on a Gin router group.
func (h *BridgeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bridges := rg.Group("/bridges")
	{
		bridges.POST("", h.Create)
		bridges.GET("", h.List)
		bridges.GET("/:id", h.Get)
		bridges.GET("/:id/status", h.Status)
		bridges.GET("/:id/trace", h.Trace)
		bridges.GET("/:id/logs", h.GetLogs)
		bridges.DELETE("/:id", h.Delete)
	}
}
