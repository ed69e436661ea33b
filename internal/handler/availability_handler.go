package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/pkg/response"
)

type availabilityService interface {
	GetAvailability(ctx context.Context, query models.AvailabilityQuery) (*models.AvailabilityResult, error)
}

// AvailabilityHandler serves public slot queries.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler builds the handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Get godoc
// @Summary List bookable slots
// @Description from/to are YYYY-MM-DD in the tenant time zone, or RFC3339
// @Tags Availability
// @Produce json
// @Param tenantId query string true "Tenant ID"
// @Param serviceId query string true "Service ID"
// @Param staffId query string false "Staff ID, omit for any staff"
// @Param from query string true "First day"
// @Param to query string true "Last day"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	var query models.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, badJSON(err, "invalid availability query"))
		return
	}
	result, err := h.service.GetAvailability(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
