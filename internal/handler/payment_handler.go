package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/pkg/response"
	"github.com/RaMarWilson1/bookbetter/pkg/signing"
)

const maxWebhookBody = 64 << 10

type paymentWebhookService interface {
	HandleWebhook(ctx context.Context, signature string, body []byte) (*models.PaymentWebhookResult, error)
}

// PaymentHandler receives payment collaborator callbacks.
type PaymentHandler struct {
	service paymentWebhookService
}

// NewPaymentHandler builds the handler.
func NewPaymentHandler(service paymentWebhookService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Webhook godoc
// @Summary Payment collaborator webhook
// @Description Body must be signed with X-BookBetter-Signature: t=<unix>,v1=<hex hmac-sha256 of "t.body">
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.PaymentWebhookEvent true "Event"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /webhooks/payments [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, badJSON(err, "unable to read webhook body"))
		return
	}
	result, err := h.service.HandleWebhook(c.Request.Context(), c.GetHeader(signing.SignatureHeader), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
