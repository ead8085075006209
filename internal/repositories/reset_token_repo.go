package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/ajali/internal/database"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResetTokenRepository is the consumed-token set that makes reset links single-use
type ResetTokenRepository struct {
	pool *pgxpool.Pool
}

func NewResetTokenRepository(db *database.DB) *ResetTokenRepository {
	return &ResetTokenRepository{pool: db.Pool}
}

// MarkConsumed records jti as used. A second call for the same jti returns
// models.ErrConflict, which is how concurrent replays lose.
func (r *ResetTokenRepository) MarkConsumed(ctx context.Context, jti, email string, expiresAt time.Time) error {
	query := `
		INSERT INTO used_reset_tokens (jti, email, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, jti, email, expiresAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

// IsConsumed checks whether jti has already been used
func (r *ResetTokenRepository) IsConsumed(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM used_reset_tokens WHERE jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// CleanupExpired removes rows whose token could no longer verify anyway
func (r *ResetTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM used_reset_tokens WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
