package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApiKeyRepo implements ports.ApiKeyRepository, adapted from the wallet
// repository's read/write shape onto opaque merchant credentials.
type ApiKeyRepo struct {
	pool Pool
}

// NewApiKeyRepo creates a new ApiKeyRepo.
func NewApiKeyRepo(pool Pool) *ApiKeyRepo {
	return &ApiKeyRepo{pool: pool}
}

// Create inserts a new API key record.
func (r *ApiKeyRepo) Create(ctx context.Context, key *domain.ApiKey) error {
	query := `INSERT INTO api_keys (id, merchant_id, hashed_key, permissions, active, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		key.ID, key.MerchantID, key.HashedKey, key.Permissions,
		key.Active, key.LastUsedAt, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetByHashedKey fetches an API key by its stored hash, the lookup used on
// every authenticated request.
func (r *ApiKeyRepo) GetByHashedKey(ctx context.Context, hashedKey string) (*domain.ApiKey, error) {
	query := `SELECT id, merchant_id, hashed_key, permissions, active, last_used_at, created_at
		FROM api_keys WHERE hashed_key = $1`

	k := &domain.ApiKey{}
	err := r.pool.QueryRow(ctx, query, hashedKey).Scan(
		&k.ID, &k.MerchantID, &k.HashedKey, &k.Permissions, &k.Active, &k.LastUsedAt, &k.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api key by hashed key: %w", err)
	}
	return k, nil
}

// TouchLastUsed records the time an API key was last presented.
func (r *ApiKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("touch api key last used: %w", err)
	}
	return nil
}
