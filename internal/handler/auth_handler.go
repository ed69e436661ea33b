package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/pkg/response"
)

type tokenIssuer interface {
	IssueToken(req models.IssueTokenRequest) (*models.TokenResponse, error)
}

// AuthHandler mints local bearer tokens. It is only routed outside
// production, where the auth provider issues tokens instead.
type AuthHandler struct {
	service tokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc tokenIssuer) *AuthHandler {
	return &AuthHandler{service: svc}
}

// IssueToken godoc
// @Summary Issue a development access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.IssueTokenRequest true "Identity"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /dev/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req models.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, badJSON(err, "invalid token payload"))
		return
	}
	res, err := h.service.IssueToken(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Current identity
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	response.JSON(c, http.StatusOK, claimsFromContext(c), nil)
}
