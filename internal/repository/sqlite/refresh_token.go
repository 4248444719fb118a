package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/fieldops/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

type RefreshTokenRepository struct {
	db  *Connection
	now func() time.Time
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, now: time.Now}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	const query = `
        INSERT INTO refresh_tokens (
            id, jti, user_id, token_hash, issued_at, expires_at, revoked_at, rotated_from_jti, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	now := toMillis(r.now())

	var rotatedFrom sql.NullString
	if token.RotatedFromJTI != nil {
		rotatedFrom = sql.NullString{String: *token.RotatedFromJTI, Valid: true}
	}

	_, err := r.db.exec(ctx, query,
		token.ID.String(), token.JTI, token.UserID.String(), token.TokenHash,
		toMillis(token.IssuedAt), toMillis(token.ExpiresAt), toNullMillis(token.RevokedAt), rotatedFrom,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) GetByJTI(ctx context.Context, jti string) (model.RefreshToken, error) {
	const query = `
        SELECT id, jti, user_id, token_hash, issued_at, expires_at, revoked_at, rotated_from_jti, created_at, updated_at
        FROM refresh_tokens WHERE jti = ?
    `

	var (
		rt                   model.RefreshToken
		id, userID           string
		issuedAt, expiresAt  int64
		createdAt, updatedAt int64
		revokedAt            sql.NullInt64
		rotatedFrom          sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, jti).Scan(
		&id, &rt.JTI, &userID, &rt.TokenHash, &issuedAt, &expiresAt,
		&revokedAt, &rotatedFrom, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get refresh token by jti: %w", mapError(err))
	}

	if rt.ID, err = uuid.Parse(id); err != nil {
		return model.RefreshToken{}, fmt.Errorf("invalid refresh token id %q: %w", id, err)
	}
	if rt.UserID, err = uuid.Parse(userID); err != nil {
		return model.RefreshToken{}, fmt.Errorf("invalid refresh token user id %q: %w", userID, err)
	}
	rt.IssuedAt = fromMillis(issuedAt)
	rt.ExpiresAt = fromMillis(expiresAt)
	rt.RevokedAt = fromNullMillis(revokedAt)
	rt.CreatedAt = fromMillis(createdAt)
	rt.UpdatedAt = fromMillis(updatedAt)
	if rotatedFrom.Valid {
		rt.RotatedFromJTI = &rotatedFrom.String
	}
	return rt, nil
}

func (r *RefreshTokenRepository) RevokeByJTI(ctx context.Context, jti string) error {
	const query = `
        UPDATE refresh_tokens SET revoked_at = ?, updated_at = ?
        WHERE jti = ? AND revoked_at IS NULL
    `
	now := toMillis(r.now())
	if _, err := r.db.exec(ctx, query, now, now, jti); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	const query = `
        UPDATE refresh_tokens SET revoked_at = ?, updated_at = ?
        WHERE user_id = ? AND revoked_at IS NULL
    `
	now := toMillis(r.now())
	if _, err := r.db.exec(ctx, query, now, now, userID.String()); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens by user: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < ?`

	result, err := r.db.exec(ctx, query, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted refresh tokens: %w", err)
	}
	return n, nil
}
