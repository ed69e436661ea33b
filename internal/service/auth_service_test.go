package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaMarWilson1/bookbetter/internal/models"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
)

func newAuthFixture() *AuthService {
	return NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "jwt-secret", AccessTokenExpiry: time.Hour, Issuer: "bookbetter"})
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := newAuthFixture()

	issued, err := svc.IssueToken(models.IssueTokenRequest{UserID: proFixtureID, Role: models.RolePro, Email: "pro@example.com", TenantID: tenantFixtureID})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), issued.ExpiresIn)

	claims, err := svc.ValidateToken(issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, proFixtureID, claims.UserID)
	assert.Equal(t, models.RolePro, claims.Role)
	assert.Equal(t, tenantFixtureID, claims.TenantID)
}

func TestIssueTokenRequiresTenantForPros(t *testing.T) {
	svc := newAuthFixture()

	_, err := svc.IssueToken(models.IssueTokenRequest{UserID: proFixtureID, Role: models.RolePro})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.IssueToken(models.IssueTokenRequest{UserID: clientFixtureID, Role: models.RoleClient})
	assert.NoError(t, err)
}

func TestValidateTokenRejections(t *testing.T) {
	svc := newAuthFixture()
	issued, err := svc.IssueToken(models.IssueTokenRequest{UserID: clientFixtureID, Role: models.RoleClient})
	require.NoError(t, err)

	other := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "other-secret", Issuer: "bookbetter"})
	_, err = other.ValidateToken(issued.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(issued.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), "expired")

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID:           "someone",
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "bookbetter", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := forged.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	fresh := newAuthFixture()
	_, err = fresh.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), "unknown role")

	_, err = fresh.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
