package idempotency

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"billine-gateway/internal/models"
	"billine-gateway/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// RedisClient interface for Redis operations
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Claim is the outcome of registering a callback.
type Claim struct {
	Key         string
	Fingerprint string
	// Duplicate is set when the invoice already reached this status before.
	Duplicate bool
	// Conflict is set on a duplicate whose body differs from the first one.
	Conflict bool
}

// Service de-duplicates gateway callbacks. The gateway redelivers a callback
// until it gets a 200, so the same invoice/status pair may arrive many times.
type Service struct {
	redis     RedisClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewService creates a new callback de-duplication service
func NewService(rdb RedisClient, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		redis:     rdb,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// buildKey constructs the Redis key with prefix for a callback
func (s *Service) buildKey(invoiceID string, status models.Status) string {
	return fmt.Sprintf("%s:callback:%s:%s", s.keyPrefix, invoiceID, status)
}

// Fingerprint returns the hex blake2b-256 digest of a raw callback body.
func Fingerprint(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Claim atomically records cb as processed. The first caller for an
// invoice/status pair gets Duplicate=false; later callers get Duplicate=true.
func (s *Service) Claim(ctx context.Context, cb *models.CallbackIframe, raw []byte) (Claim, error) {
	claim := Claim{
		Key:         s.buildKey(cb.InvoiceID, cb.Status),
		Fingerprint: Fingerprint(raw),
	}

	stored, err := s.redis.SetNX(ctx, claim.Key, claim.Fingerprint, s.ttl).Result()
	if err != nil {
		return claim, errors.WrapDomainError(err, errors.CodeDependency, "callback dedupe failed", "redis error")
	}
	if stored {
		return claim, nil
	}

	claim.Duplicate = true
	previous, err := s.redis.Get(ctx, claim.Key).Result()
	if err == redis.Nil {
		// expired between SETNX and GET
		return claim, nil
	}
	if err != nil {
		return claim, errors.WrapDomainError(err, errors.CodeDependency, "callback dedupe failed", "redis error")
	}
	if previous != claim.Fingerprint {
		claim.Conflict = true
		s.logger.Warn("callback redelivered with different body",
			zap.String("invoice_id", cb.InvoiceID),
			zap.String("status", string(cb.Status)))
	}
	return claim, nil
}

// Release forgets a claim so that a redelivery is processed again. Used when
// the callback could not be handed downstream.
func (s *Service) Release(ctx context.Context, claim Claim) error {
	if err := s.redis.Del(ctx, claim.Key).Err(); err != nil {
		return errors.WrapDomainError(err, errors.CodeDependency, "callback dedupe release failed", "redis error")
	}
	return nil
}
