package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
	"github.com/RaMarWilson1/bookbetter/pkg/response"
)

type tenantMembers interface {
	IsMember(ctx context.Context, tenantID, userID string) (bool, error)
}

type eventStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, tenantID string) error
}

// RealtimeHandler upgrades tenant dashboards to a booking event stream.
type RealtimeHandler struct {
	hub     eventStreamer
	members tenantMembers
	logger  *zap.Logger
}

// NewRealtimeHandler builds the handler.
func NewRealtimeHandler(hub eventStreamer, members tenantMembers, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{hub: hub, members: members, logger: logger}
}

// Stream godoc
// @Summary Booking event websocket
// @Tags Realtime
// @Param tenantId path string true "Tenant ID"
// @Param token query string true "Access token"
// @Success 101
// @Router /tenants/{tenantId}/events/ws [get]
func (h *RealtimeHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	tenantID := c.Param("tenantId")
	ok, err := h.members.IsMember(c.Request.Context(), tenantID, claims.UserID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tenant membership"))
		return
	}
	if !ok {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, tenantID); err != nil {
		// the upgrader already wrote the HTTP error
		h.logger.Debug("websocket upgrade failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
