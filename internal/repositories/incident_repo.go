package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/ajali/internal/database"
	"github.com/BradenHooton/ajali/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const incidentColumns = `id, title, description, latitude, longitude, status, reward_paid, created_by, created_at, updated_at`

type IncidentRepository struct {
	db *database.DB
}

func NewIncidentRepository(db *database.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

func scanIncidentRow(scanner rowScanner) (*models.Incident, error) {
	var inc models.Incident
	err := scanner.Scan(
		&inc.ID, &inc.Title, &inc.Description, &inc.Latitude, &inc.Longitude,
		&inc.Status, &inc.RewardPaid, &inc.CreatedBy, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &inc, nil
}

func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	return scanIncidentRow(r.db.Pool.QueryRow(ctx, query, id))
}

// List returns incidents newest first, optionally filtered by status and reporter
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	conds := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conds = append(conds, fmt.Sprintf("created_by = $%d", len(args)))
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		inc, err := scanIncidentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return incidents, nil
}

func (r *IncidentRepository) Create(ctx context.Context, inc *models.Incident) (*models.Incident, error) {
	inc.ID = uuid.New().String()
	now := time.Now()
	inc.CreatedAt = now
	inc.UpdatedAt = now
	if inc.Status == "" {
		inc.Status = models.IncidentStatusPending
	}

	query := `
		INSERT INTO incidents (id, title, description, latitude, longitude, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + incidentColumns

	return scanIncidentRow(r.db.Pool.QueryRow(ctx, query,
		inc.ID, inc.Title, inc.Description, inc.Latitude, inc.Longitude,
		inc.Status, inc.CreatedBy, inc.CreatedAt, inc.UpdatedAt,
	))
}

// Update writes the reporter-editable fields
func (r *IncidentRepository) Update(ctx context.Context, id string, inc *models.Incident) (*models.Incident, error) {
	query := `
		UPDATE incidents SET title = $1, description = $2, latitude = $3, longitude = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + incidentColumns

	return scanIncidentRow(r.db.Pool.QueryRow(ctx, query,
		inc.Title, inc.Description, inc.Latitude, inc.Longitude, id,
	))
}

// UpdateStatus changes the status in one transaction with the reporter's
// reward. The reward is credited only the first time the incident reaches
// resolved; credited is the number of points paid by this call.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, id, status string, reward int) (inc *models.Incident, credited int, err error) {
	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		current, err := scanIncidentRow(tx.QueryRow(ctx,
			`SELECT `+incidentColumns+` FROM incidents WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		pay := status == models.IncidentStatusResolved && !current.RewardPaid && reward > 0

		inc, err = scanIncidentRow(tx.QueryRow(ctx, `
			UPDATE incidents SET status = $1, reward_paid = reward_paid OR $2, updated_at = NOW()
			WHERE id = $3
			RETURNING `+incidentColumns, status, pay, id))
		if err != nil {
			return err
		}

		if pay {
			if _, err := CreditPoints(ctx, tx, current.CreatedBy, reward); err != nil {
				return fmt.Errorf("failed to credit reporter: %w", err)
			}
			credited = reward
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return inc, credited, nil
}

func (r *IncidentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *IncidentRepository) Stats(ctx context.Context) (*models.IncidentStats, error) {
	stats := &models.IncidentStats{ByStatus: make(map[string]int)}

	rows, err := r.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM incidents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query incident stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan incident stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return stats, nil
}
