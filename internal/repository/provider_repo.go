package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/load28/foodie/internal/models"
	"github.com/load28/foodie/internal/pkg/ulid"
)

// ProviderRepository defines the interface for OAuth provider link operations.
type ProviderRepository interface {
	Upsert(ctx context.Context, provider *models.OAuthProvider) error
	GetByProviderUserID(ctx context.Context, kind models.OAuthProviderKind, providerUserID string) (*models.OAuthProvider, error)
	GetByUserID(ctx context.Context, userID string, kind models.OAuthProviderKind) (*models.OAuthProvider, error)
	UpdateTokens(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

type providerRepo struct {
	pool *pgxpool.Pool
}

// NewProviderRepository creates a new OAuth provider repository.
func NewProviderRepository(pool *pgxpool.Pool) ProviderRepository {
	return &providerRepo{pool: pool}
}

const providerColumns = `id, user_id, provider, provider_user_id, access_token, refresh_token, token_expires_at, created_at, updated_at`

func scanProvider(row pgx.Row) (*models.OAuthProvider, error) {
	var p models.OAuthProvider
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Provider,
		&p.ProviderUserID,
		&p.AccessToken,
		&p.RefreshToken,
		&p.TokenExpiresAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts a provider link, refreshing the stored tokens when
// the (provider, provider_user_id) pair already exists.
func (r *providerRepo) Upsert(ctx context.Context, provider *models.OAuthProvider) error {
	query := `
		INSERT INTO oauth_providers (id, user_id, provider, provider_user_id, access_token, refresh_token, token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, provider_user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    token_expires_at = EXCLUDED.token_expires_at,
		    updated_at = now()
		RETURNING id, created_at, updated_at`

	if provider.ID == "" {
		provider.ID = ulid.New()
	}

	return r.pool.QueryRow(ctx, query,
		provider.ID,
		provider.UserID,
		provider.Provider,
		provider.ProviderUserID,
		provider.AccessToken,
		provider.RefreshToken,
		provider.TokenExpiresAt,
	).Scan(&provider.ID, &provider.CreatedAt, &provider.UpdatedAt)
}

// GetByProviderUserID looks up a link by external identity.
func (r *providerRepo) GetByProviderUserID(ctx context.Context, kind models.OAuthProviderKind, providerUserID string) (*models.OAuthProvider, error) {
	query := `SELECT ` + providerColumns + ` FROM oauth_providers WHERE provider = $1 AND provider_user_id = $2`
	return scanProvider(r.pool.QueryRow(ctx, query, kind, providerUserID))
}

// GetByUserID looks up a user's link for one provider.
func (r *providerRepo) GetByUserID(ctx context.Context, userID string, kind models.OAuthProviderKind) (*models.OAuthProvider, error) {
	query := `SELECT ` + providerColumns + ` FROM oauth_providers WHERE user_id = $1 AND provider = $2`
	return scanProvider(r.pool.QueryRow(ctx, query, userID, kind))
}

// UpdateTokens replaces the stored (encrypted) tokens after a refresh.
func (r *providerRepo) UpdateTokens(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	query := `
		UPDATE oauth_providers
		SET access_token = $2, refresh_token = COALESCE($3, refresh_token), token_expires_at = $4, updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a provider link.
func (r *providerRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_providers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Compile-time check to ensure providerRepo implements ProviderRepository.
var _ ProviderRepository = (*providerRepo)(nil)
