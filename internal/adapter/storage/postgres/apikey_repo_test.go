package postgres

import (
	"context"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApiKey(merchantID uuid.UUID) *domain.ApiKey {
	return &domain.ApiKey{
		ID:          uuid.New(),
		MerchantID:  merchantID,
		HashedKey:   "sha256:abcdef",
		Permissions: []string{"payments:write", "refunds:write"},
		Active:      true,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestApiKeyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewApiKeyRepo(mock)
	k := newTestApiKey(uuid.New())

	mock.ExpectExec("INSERT INTO api_keys").
		WithArgs(k.ID, k.MerchantID, k.HashedKey, k.Permissions, k.Active, k.LastUsedAt, k.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), k)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApiKeyRepo_GetByHashedKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewApiKeyRepo(mock)
	k := newTestApiKey(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE hashed_key").
		WithArgs(k.HashedKey).
		WillReturnRows(pgxmock.NewRows([]string{"id", "merchant_id", "hashed_key", "permissions", "active", "last_used_at", "created_at"}).
			AddRow(k.ID, k.MerchantID, k.HashedKey, k.Permissions, k.Active, k.LastUsedAt, k.CreatedAt))

	result, err := repo.GetByHashedKey(context.Background(), k.HashedKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, k.MerchantID, result.MerchantID)
	assert.True(t, result.HasPermission("payments:write"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApiKeyRepo_GetByHashedKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewApiKeyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE hashed_key").
		WithArgs("sha256:nonexistent").
		WillReturnRows(pgxmock.NewRows([]string{"id", "merchant_id", "hashed_key", "permissions", "active", "last_used_at", "created_at"}))

	result, err := repo.GetByHashedKey(context.Background(), "sha256:nonexistent")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApiKeyRepo_TouchLastUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewApiKeyRepo(mock)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE api_keys SET last_used_at").
		WithArgs(at, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.TouchLastUsed(context.Background(), id, at)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
