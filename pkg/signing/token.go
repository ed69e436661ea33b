package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("invalid token format")
	ErrBadSignature   = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenSigner creates and validates signed, expiring tokens that bind a
// purpose and a subject (for example "manage" and a booking id).
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner constructs a signer with the provided secret and TTL.
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token for subject scoped to purpose.
func (s *TokenSigner) Generate(purpose, subject string) (string, time.Time, error) {
	if purpose == "" || subject == "" {
		return "", time.Time{}, fmt.Errorf("purpose and subject required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	encodedSubject := base64.RawURLEncoding.EncodeToString([]byte(subject))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(purpose, ts, encodedSubject)
	token := strings.Join([]string{encodedSubject, ts, signature}, ".")
	return token, expiresAt, nil
}

// Parse validates a token for purpose and returns the embedded subject.
func (s *TokenSigner) Parse(purpose, token string) (string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", time.Time{}, ErrMalformedToken
	}
	encodedSubject, ts, signature := parts[0], parts[1], parts[2]

	rawSubject, err := base64.RawURLEncoding.DecodeString(encodedSubject)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("decode subject: %w", ErrMalformedToken)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid timestamp: %w", ErrMalformedToken)
	}
	expiresAt := time.Unix(expUnix, 0).UTC()

	expected := s.sign(purpose, ts, encodedSubject)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", time.Time{}, ErrBadSignature
	}
	if s.now().After(expiresAt) {
		return "", time.Time{}, ErrTokenExpired
	}
	return string(rawSubject), expiresAt, nil
}

func (s *TokenSigner) sign(purpose, ts, encodedSubject string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(purpose + "|" + ts + "|" + encodedSubject))
	return hex.EncodeToString(mac.Sum(nil))
}
