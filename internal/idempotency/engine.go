// Package idempotency implements the two-tier idempotency engine: a Redis
// fast path in front of a Postgres durable record, serialized per
// (key, merchant) by a transaction-scoped advisory lock, the way
// j0sehernan-yuno-challenge's repository package layers a cache check in
// front of its advisory-lock-guarded insert-or-get.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultTTL is the lifetime of a reserved idempotency record absent an
// override.
const DefaultTTL = 24 * time.Hour

// Engine implements ports.IdempotencyEngine.
type Engine struct {
	cache  ports.IdempotencyCache
	repo   ports.IdempotencyRepository
	tx     ports.DBTransactor
	ttl    time.Duration
}

// NewEngine builds an Engine with the given TTL for newly-reserved keys.
func NewEngine(cache ports.IdempotencyCache, repo ports.IdempotencyRepository, tx ports.DBTransactor, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{cache: cache, repo: repo, tx: tx, ttl: ttl}
}

type cachedEntry struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
	Processing bool   `json:"processing"`
}

// Check implements ports.IdempotencyEngine.
func (e *Engine) Check(ctx context.Context, key string, merchantID uuid.UUID, fingerprint string) (ports.CheckResult, error) {
	cacheKey := cacheKeyFor(key, merchantID)

	if raw, err := e.cache.Get(ctx, cacheKey); err == nil && raw != nil {
		var entry cachedEntry
		if err := json.Unmarshal(raw, &entry); err == nil {
			return ports.CheckResult{
				Exists:           true,
				Processing:       entry.Processing,
				CachedResponse:   entry.Body,
				CachedStatusCode: entry.StatusCode,
			}, nil
		}
	}

	rec, err := e.repo.Get(ctx, key, merchantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.CheckResult{}, nil
		}
		return ports.CheckResult{}, fmt.Errorf("idempotency check: %w", err)
	}
	if rec == nil {
		return ports.CheckResult{}, nil
	}

	if rec.RequestFingerprint != fingerprint {
		return ports.CheckResult{}, ports.ErrIdempotencyConflict
	}

	if rec.Status == domain.IdempotencyStatusProcessing {
		return ports.CheckResult{Exists: true, Processing: true}, nil
	}

	return ports.CheckResult{
		Exists:           true,
		CachedResponse:   rec.ResponseBody,
		CachedStatusCode: rec.ResponseStatusCode,
	}, nil
}

// StartProcessing implements ports.IdempotencyEngine.
func (e *Engine) StartProcessing(ctx context.Context, key string, merchantID uuid.UUID, fingerprint, path, method string) error {
	lockKey := domain.AdvisoryLockKey(key, merchantID)

	tx, err := e.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockHash(lockKey)); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	existing, err := e.repo.Get(ctx, key, merchantID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check existing record: %w", err)
	}

	if existing != nil {
		if existing.RequestFingerprint != fingerprint {
			return ports.ErrIdempotencyConflict
		}
		return tx.Commit(ctx)
	}

	rec := &domain.IdempotencyRecord{
		Key:                 key,
		MerchantID:          merchantID,
		RequestFingerprint:  fingerprint,
		RequestPath:         path,
		RequestMethod:       method,
		Status:              domain.IdempotencyStatusProcessing,
		CreatedAt:           time.Now(),
		ExpiresAt:           time.Now().Add(e.ttl),
	}
	if err := e.repo.Insert(ctx, tx, rec); err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	entry, _ := json.Marshal(cachedEntry{Processing: true})
	_ = e.cache.Set(ctx, cacheKeyFor(key, merchantID), entry, e.ttl)

	return nil
}

// Complete implements ports.IdempotencyEngine.
func (e *Engine) Complete(ctx context.Context, key string, merchantID uuid.UUID, statusCode int, responseBody []byte) error {
	tx, err := e.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := e.repo.Complete(ctx, tx, key, merchantID, statusCode, responseBody); err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	cacheKey := cacheKeyFor(key, merchantID)
	ttl, err := e.cache.TTL(ctx, cacheKey)
	if err != nil || ttl <= 0 {
		ttl = e.ttl
	}

	entry, _ := json.Marshal(cachedEntry{StatusCode: statusCode, Body: responseBody})
	_ = e.cache.Set(ctx, cacheKey, entry, ttl)

	return nil
}

// Remove implements ports.IdempotencyEngine.
func (e *Engine) Remove(ctx context.Context, key string, merchantID uuid.UUID) error {
	if err := e.cache.Delete(ctx, cacheKeyFor(key, merchantID)); err != nil {
		return fmt.Errorf("remove from cache: %w", err)
	}
	if err := e.repo.Delete(ctx, key, merchantID); err != nil {
		return fmt.Errorf("remove from repository: %w", err)
	}
	return nil
}

func cacheKeyFor(key string, merchantID uuid.UUID) string {
	return domain.AdvisoryLockKey(key, merchantID)
}

func lockHash(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64() &^ (1 << 63))
}
