package signing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenSignerGenerateAndParse(t *testing.T) {
	signer := NewTokenSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("manage", "booking-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	subject, parsedExpiry, err := signer.Parse("manage", token)
	require.NoError(t, err)
	require.Equal(t, "booking-1", subject)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestTokenSignerRejectsOtherPurpose(t *testing.T) {
	signer := NewTokenSigner("secret", time.Hour)
	token, _, err := signer.Generate("manage", "booking-1")
	require.NoError(t, err)

	_, _, err = signer.Parse("admin", token)
	require.True(t, errors.Is(err, ErrBadSignature))
}

func TestTokenSignerExpired(t *testing.T) {
	signer := NewTokenSigner("secret", time.Hour)
	token, _, err := signer.Generate("manage", "booking-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = signer.Parse("manage", token)
	require.True(t, errors.Is(err, ErrTokenExpired))
}

func TestTokenSignerMalformed(t *testing.T) {
	signer := NewTokenSigner("secret", time.Hour)
	_, _, err := signer.Parse("manage", "abc")
	require.True(t, errors.Is(err, ErrMalformedToken))
}

func TestWebhookSignerRoundTrip(t *testing.T) {
	signer := NewWebhookSigner("whsec", 5*time.Minute)
	body := []byte(`{"event":"payment.succeeded"}`)
	header := signer.Sign(body, time.Now())

	require.NoError(t, signer.Verify(header, body))
	require.True(t, errors.Is(signer.Verify(header, []byte(`{}`)), ErrBadSignature))
}

func TestWebhookSignerStale(t *testing.T) {
	signer := NewWebhookSigner("whsec", time.Minute)
	body := []byte(`{}`)
	header := signer.Sign(body, time.Now().Add(-10*time.Minute))

	require.True(t, errors.Is(signer.Verify(header, body), ErrStaleSignature))
	require.True(t, errors.Is(signer.Verify("v1=abc", body), ErrMalformedToken))
}
