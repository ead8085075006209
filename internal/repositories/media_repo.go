package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/ajali/internal/database"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const mediaColumns = `id, incident_id, uploaded_by, file_name, object_key, content_type, media_type, size_bytes, created_at`

type MediaRepository struct {
	pool *pgxpool.Pool
}

func NewMediaRepository(db *database.DB) *MediaRepository {
	return &MediaRepository{pool: db.Pool}
}

func scanMediaRow(scanner rowScanner) (*models.Media, error) {
	var m models.Media
	err := scanner.Scan(
		&m.ID, &m.IncidentID, &m.UploadedBy, &m.FileName, &m.ObjectKey,
		&m.ContentType, &m.MediaType, &m.SizeBytes, &m.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &m, nil
}

func (r *MediaRepository) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO incident_media (id, incident_id, uploaded_by, file_name, object_key, content_type, media_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + mediaColumns

	return scanMediaRow(r.pool.QueryRow(ctx, query,
		m.ID, m.IncidentID, m.UploadedBy, m.FileName, m.ObjectKey,
		m.ContentType, m.MediaType, m.SizeBytes,
	))
}

func (r *MediaRepository) GetByID(ctx context.Context, id string) (*models.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM incident_media WHERE id = $1`
	return scanMediaRow(r.pool.QueryRow(ctx, query, id))
}

func (r *MediaRepository) ListByIncident(ctx context.Context, incidentID string) ([]*models.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM incident_media WHERE incident_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Media, 0)
	for rows.Next() {
		m, err := scanMediaRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// ListByUser returns media a user uploaded or that hangs off incidents the user
// reported. These are the rows a hard delete of the user cascades away.
func (r *MediaRepository) ListByUser(ctx context.Context, userID string) ([]*models.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM incident_media
		WHERE uploaded_by = $1
		   OR incident_id IN (SELECT id FROM incidents WHERE created_by = $1)
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Media, 0)
	for rows.Next() {
		m, err := scanMediaRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// ListByIncidents returns media for several incidents keyed by incident ID
func (r *MediaRepository) ListByIncidents(ctx context.Context, incidentIDs []string) (map[string][]*models.Media, error) {
	out := make(map[string][]*models.Media, len(incidentIDs))
	if len(incidentIDs) == 0 {
		return out, nil
	}

	query := `SELECT ` + mediaColumns + ` FROM incident_media WHERE incident_id = ANY($1::uuid[]) ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, incidentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMediaRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		out[m.IncidentID] = append(out[m.IncidentID], m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM incident_media WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
