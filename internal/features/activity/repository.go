package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go-pipeline/internal/common/models"
	"go-pipeline/internal/database"
	"go-pipeline/internal/features/deal"

	"github.com/google/uuid"
)

type ActivityRepository interface {
	Insert(ctx context.Context, a *models.Activity) error
	ListByType(ctx context.Context, dealID string, typ models.ActivityType, limit int) ([]models.Activity, error)
	ListByDeal(ctx context.Context, dealID string) ([]models.Activity, error)
}

type ActivityRepositoryImpl struct {
	DB *sql.DB
}

func NewActivityRepository(pg *database.PostgresDB) ActivityRepository {
	return &ActivityRepositoryImpl{DB: pg.DB}
}

func (r *ActivityRepositoryImpl) Insert(ctx context.Context, a *models.Activity) error {
	var meta []byte
	if a.Metadata != nil {
		var err error
		if meta, err = json.Marshal(a.Metadata); err != nil {
			return err
		}
	}
	id := uuid.NewString()
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO deal_activities (id, deal_id, activity_type, title, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, a.DealID, a.ActivityType, a.Title, a.Description, nullableJSON(meta), createdAt); err != nil {
		return err
	}
	a.ID = id
	a.CreatedAt = createdAt
	return nil
}

const activityColumns = `id, deal_id, activity_type, title, description, metadata, created_at`

func (r *ActivityRepositoryImpl) ListByType(ctx context.Context, dealID string, typ models.ActivityType, limit int) ([]models.Activity, error) {
	// a malformed id cannot match any row
	if _, err := uuid.Parse(dealID); err != nil {
		return []models.Activity{}, nil
	}
	return r.query(ctx, `SELECT `+activityColumns+` FROM deal_activities
		WHERE deal_id = $1 AND activity_type = $2
		ORDER BY created_at DESC LIMIT $3`, dealID, typ, limit)
}

func (r *ActivityRepositoryImpl) ListByDeal(ctx context.Context, dealID string) ([]models.Activity, error) {
	if _, err := uuid.Parse(dealID); err != nil {
		return []models.Activity{}, nil
	}
	return r.query(ctx, `SELECT `+activityColumns+` FROM deal_activities
		WHERE deal_id = $1 ORDER BY created_at DESC`, dealID)
}

func (r *ActivityRepositoryImpl) query(ctx context.Context, q string, args ...any) ([]models.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		a, err := deal.ScanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
