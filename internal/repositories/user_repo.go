package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/ajali/internal/database"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, phone, password_hash, security_question, security_answer_hash,
	role, status, points, password_changed_at, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow populates a User model from a row selected with userColumns
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Email, &user.Phone, &user.PasswordHash,
		&user.SecurityQuestion, &user.SecurityAnswerHash,
		&user.Role, &user.Status, &user.Points, &user.PasswordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

// GetByPhone expects an E.164 number
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, phone))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}

	query := `
		INSERT INTO users (id, name, email, phone, password_hash, role, status, points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.Phone, user.PasswordHash,
		user.Role, user.Status, user.CreatedAt, user.UpdatedAt,
	))
}

// Update writes the profile fields (name, email, phone)
func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	query := `
		UPDATE users SET name = $1, email = $2, phone = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, user.Name, user.Email, user.Phone, id))
}

// UpdatePassword replaces the hash and stamps password_changed_at
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users SET password_hash = $1, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	return r.execOne(ctx, query, passwordHash, id)
}

func (r *UserRepository) UpdateSecurityQuestion(ctx context.Context, id, question, answerHash string) error {
	query := `
		UPDATE users SET security_question = $1, security_answer_hash = $2, updated_at = NOW()
		WHERE id = $3
	`
	return r.execOne(ctx, query, question, answerHash, id)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	query := `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + userColumns
	return scanUserRow(r.pool.QueryRow(ctx, query, role, id))
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id, status string) (*models.User, error) {
	query := `UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + userColumns
	return scanUserRow(r.pool.QueryRow(ctx, query, status, id))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// DebitPoints atomically subtracts amount when the balance covers it and
// returns the new balance. The conditional UPDATE is the only check, so two
// concurrent debits can never both succeed against the same points.
func (r *UserRepository) DebitPoints(ctx context.Context, id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, models.ErrBadRequest
	}

	query := `
		UPDATE users SET points = points - $1, updated_at = NOW()
		WHERE id = $2 AND points >= $1
		RETURNING points
	`

	var remaining int
	err := r.pool.QueryRow(ctx, query, amount, id).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, database.MapPostgresError(err)
	}

	// Either the user is gone or the balance was short.
	if _, err := r.GetByID(ctx, id); err != nil {
		return 0, err
	}
	return 0, models.ErrInsufficientPoints
}

// CreditPoints adds amount to the balance and returns the new balance
func (r *UserRepository) CreditPoints(ctx context.Context, id string, amount int) (int, error) {
	return CreditPoints(ctx, r.pool, id, amount)
}

// CreditPoints runs the credit on q so callers can include it in a transaction
func CreditPoints(ctx context.Context, q database.Querier, id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, models.ErrBadRequest
	}

	query := `UPDATE users SET points = points + $1, updated_at = NOW() WHERE id = $2 RETURNING points`

	var balance int
	if err := q.QueryRow(ctx, query, amount, id).Scan(&balance); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return balance, nil
}

// Leaderboard returns the top users by points, oldest account first on ties
func (r *UserRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `SELECT id, name, points FROM users ORDER BY points DESC, created_at ASC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Points); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

func (r *UserRepository) Stats(ctx context.Context) (*models.UserStats, error) {
	stats := &models.UserStats{
		ByRole:   make(map[string]int),
		ByStatus: make(map[string]int),
	}

	query := `SELECT role, status, COUNT(*), COALESCE(SUM(points), 0) FROM users GROUP BY role, status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role, status string
		var count int
		var points int64
		if err := rows.Scan(&role, &status, &count, &points); err != nil {
			return nil, fmt.Errorf("failed to scan user stats: %w", err)
		}
		stats.Total += count
		stats.ByRole[role] += count
		stats.ByStatus[status] += count
		stats.TotalPoints += points
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return stats, nil
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
