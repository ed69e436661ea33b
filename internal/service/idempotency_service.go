package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/pkg/cache"
	appErrors "github.com/RaMarWilson1/bookbetter/pkg/errors"
)

const (
	idempotencyPending = "pending"
	idempotencyDone    = "done"
)

// IdempotentResponse is a stored reply replayed for a repeated key.
type IdempotentResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type idempotencyRecord struct {
	State       string              `json:"state"`
	Fingerprint string              `json:"fingerprint"`
	Response    *IdempotentResponse `json:"response,omitempty"`
}

// IdempotencyService remembers reservation replies per Idempotency-Key so a
// retried POST returns the first answer instead of booking twice. Redis
// failures degrade to running the request unguarded.
type IdempotencyService struct {
	cache  *CacheService
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdempotencyService builds the service on top of the shared cache.
func NewIdempotencyService(cacheSvc *CacheService, prefix string, ttl time.Duration, logger *zap.Logger) *IdempotencyService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyService{cache: cacheSvc, prefix: prefix, ttl: ttl, logger: logger}
}

// Fingerprint hashes a request body.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (s *IdempotencyService) key(scope, key string) string {
	return cache.Key(s.prefix, "idem", scope, key)
}

// Begin claims key for scope. A nil response means the caller should run the
// request and then Complete or Release. A stored response is returned for
// replay. Reusing a key with a different body fails with
// IDEMPOTENCY_MISMATCH and a key still being processed fails with CONFLICT.
func (s *IdempotencyService) Begin(ctx context.Context, scope, key, fingerprint string) (*IdempotentResponse, error) {
	if key == "" || !s.cache.Enabled() {
		return nil, nil
	}
	if len(key) > 255 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Idempotency-Key must be at most 255 characters")
	}
	k := s.key(scope, key)
	pending := idempotencyRecord{State: idempotencyPending, Fingerprint: fingerprint}

	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := s.cache.Claim(ctx, k, pending, s.ttl)
		if err != nil {
			s.logger.Warn("idempotency unavailable, running request unguarded", zap.Error(err))
			return nil, nil
		}
		if claimed {
			return nil, nil
		}

		var existing idempotencyRecord
		hit, err := s.cache.Get(ctx, k, &existing)
		if err != nil {
			s.logger.Warn("idempotency unavailable, running request unguarded", zap.Error(err))
			return nil, nil
		}
		if !hit {
			// expired between SETNX and GET
			continue
		}
		if existing.Fingerprint != fingerprint {
			return nil, appErrors.Clone(appErrors.ErrIdempotencyMismatch, "")
		}
		if existing.State != idempotencyDone || existing.Response == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a request with this Idempotency-Key is still in progress")
		}
		return existing.Response, nil
	}
	return nil, nil
}

// Complete stores the final reply for key.
func (s *IdempotencyService) Complete(ctx context.Context, scope, key, fingerprint string, resp IdempotentResponse) {
	if key == "" || !s.cache.Enabled() {
		return
	}
	record := idempotencyRecord{State: idempotencyDone, Fingerprint: fingerprint, Response: &resp}
	if err := s.cache.Set(ctx, s.key(scope, key), record, s.ttl); err != nil {
		s.logger.Warn("store idempotent response", zap.String("key", key), zap.Error(err))
	}
}

// Release forgets key so the client may retry, used when the request failed
// with an error worth retrying.
func (s *IdempotencyService) Release(ctx context.Context, scope, key string) {
	if key == "" || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Delete(ctx, s.key(scope, key)); err != nil {
		s.logger.Warn("release idempotency key", zap.String("key", key), zap.Error(err))
	}
}
