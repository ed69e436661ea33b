package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
	"github.com/RaMarWilson1/bookbetter/pkg/signing"
)

type paymentMock struct {
	signature string
	body      []byte
	err       error
}

func (m *paymentMock) HandleWebhook(ctx context.Context, signature string, body []byte) (*models.PaymentWebhookResult, error) {
	m.signature, m.body = signature, body
	if m.err != nil {
		return nil, m.err
	}
	return &models.PaymentWebhookResult{EventID: "evt_1", Status: models.BookingStatusConfirmed, Applied: true}, nil
}

func postWebhook(h *PaymentHandler, body, signature string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewBufferString(body))
	req.Header.Set(signing.SignatureHeader, signature)
	c.Request = req
	h.Webhook(c)
	return w
}

func TestPaymentHandlerPassesRawBody(t *testing.T) {
	svc := &paymentMock{}
	w := postWebhook(NewPaymentHandler(svc), `{"id":"evt_1"}`, "t=1,v1=abc")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t=1,v1=abc", svc.signature)
	assert.Equal(t, `{"id":"evt_1"}`, string(svc.body))
	assert.Contains(t, w.Body.String(), `"applied":true`)
}

func TestPaymentHandlerRejectsBadSignature(t *testing.T) {
	svc := &paymentMock{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook signature")}
	w := postWebhook(NewPaymentHandler(svc), `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
