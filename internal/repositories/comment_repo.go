package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/ajali/internal/database"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CommentRepository struct {
	pool *pgxpool.Pool
}

func NewCommentRepository(db *database.DB) *CommentRepository {
	return &CommentRepository{pool: db.Pool}
}

func scanCommentRow(scanner rowScanner) (*models.Comment, error) {
	var c models.Comment
	if err := scanner.Scan(&c.ID, &c.IncidentID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}

func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	query := `
		INSERT INTO incident_comments (id, incident_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, incident_id, user_id, content, created_at
	`
	return scanCommentRow(r.pool.QueryRow(ctx, query, uuid.New().String(), c.IncidentID, c.UserID, c.Content))
}

func (r *CommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT id, incident_id, user_id, content, created_at FROM incident_comments WHERE id = $1`
	return scanCommentRow(r.pool.QueryRow(ctx, query, id))
}

// ListByIncident returns comments oldest first
func (r *CommentRepository) ListByIncident(ctx context.Context, incidentID string) ([]*models.Comment, error) {
	query := `
		SELECT id, incident_id, user_id, content, created_at
		FROM incident_comments WHERE incident_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		c, err := scanCommentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return comments, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM incident_comments WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
