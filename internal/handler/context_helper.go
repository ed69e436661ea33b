package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RaMarWilson1/bookbetter/internal/middleware"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/internal/service"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorFromContext describes the authenticated caller as a lifecycle actor.
func actorFromContext(c *gin.Context) models.Actor {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Actor{Source: service.SourceAPI}
	}
	return models.Actor{UserID: claims.UserID, Role: claims.Role, Source: service.SourceAPI}
}

func badJSON(err error, msg string) error {
	return appErrors.Wrap(err, appErrors.ErrBadRequest.Code, http.StatusBadRequest, msg)
}
