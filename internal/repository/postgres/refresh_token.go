package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/fieldops/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

// RefreshTokenRepository keeps the hashes of issued refresh tokens. Rows are
// revoked in place and purged by DeleteExpired.
type RefreshTokenRepository struct {
	db *Connection
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const refreshTokenColumns = `id, jti, user_id, token_hash, issued_at, expires_at, revoked_at, rotated_from_jti`

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	const query = `INSERT INTO refresh_tokens (` + refreshTokenColumns + `, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	if _, err := r.db.Exec(ctx, query,
		token.ID, token.JTI, token.UserID, token.TokenHash,
		token.IssuedAt, token.ExpiresAt, token.RevokedAt, token.RotatedFromJTI,
	); err != nil {
		return fmt.Errorf("failed to create refresh token: %w", mapError(err))
	}
	return nil
}

func (r *RefreshTokenRepository) GetByJTI(ctx context.Context, jti string) (model.RefreshToken, error) {
	const query = `SELECT ` + refreshTokenColumns + `, created_at, updated_at FROM refresh_tokens WHERE jti = $1`

	var t model.RefreshToken
	err := r.db.QueryRow(ctx, query, jti).Scan(
		&t.ID, &t.JTI, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt,
		&t.RevokedAt, &t.RotatedFromJTI, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("failed to get refresh token by jti: %w", mapError(err))
	}
	return t, nil
}

// RevokeByJTI is idempotent: already revoked rows keep their first revocation time.
func (r *RefreshTokenRepository) RevokeByJTI(ctx context.Context, jti string) error {
	return r.revoke(ctx, "jti = $1", jti, "refresh token")
}

// RevokeAllByUser ends every session of the user, which makes the next
// client refresh fail and signs the user out everywhere.
func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	return r.revoke(ctx, "user_id = $1", userID, "refresh tokens by user")
}

func (r *RefreshTokenRepository) revoke(ctx context.Context, where string, arg any, what string) error {
	query := `UPDATE refresh_tokens SET revoked_at = NOW(), updated_at = NOW()
		WHERE ` + where + ` AND revoked_at IS NULL`

	if _, err := r.db.Exec(ctx, query, arg); err != nil {
		return fmt.Errorf("failed to revoke %s: %w", what, mapError(err))
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", mapError(err))
	}
	return tag.RowsAffected(), nil
}
