package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/RaMarWilson1/bookbetter/internal/dto"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/pkg/response"
)

type agendaExporter interface {
	Agenda(ctx context.Context, tenantID string, query dto.AgendaQuery, actor models.Actor) (*dto.AgendaFile, error)
}

// AgendaHandler downloads a tenant's day agenda.
type AgendaHandler struct {
	service agendaExporter
}

// NewAgendaHandler builds the handler.
func NewAgendaHandler(service agendaExporter) *AgendaHandler {
	return &AgendaHandler{service: service}
}

// Download godoc
// @Summary Export a day agenda
// @Tags Agenda
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param tenantId path string true "Tenant ID"
// @Param date query string true "Local date YYYY-MM-DD"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /tenants/{tenantId}/agenda [get]
func (h *AgendaHandler) Download(c *gin.Context) {
	var query dto.AgendaQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, badJSON(err, "invalid agenda query"))
		return
	}
	file, err := h.service.Agenda(c.Request.Context(), c.Param("tenantId"), query, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
