package deal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-pipeline/internal/common/models"
	"go-pipeline/internal/database"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("deal not found")
	ErrStageNotFound = errors.New("stage not found")
)

const dateLayout = "2006-01-02"

type DealRepository interface {
	ListStages(ctx context.Context) ([]models.Stage, error)
	ListDealsWithDetails(ctx context.Context) ([]models.Deal, error)
	GetDeal(ctx context.Context, id string) (*models.Deal, error)
	CreateDeal(ctx context.Context, deal *models.Deal) error
	UpdateDeal(ctx context.Context, deal *models.Deal) error
	MoveDeal(ctx context.Context, dealID, stageID string, at time.Time) error
	DeleteDeal(ctx context.Context, id string) error
	CountDealsSince(ctx context.Context, since time.Time) (int, error)
	SeedStages(ctx context.Context, stages []models.Stage) (int, error)
}

type DealRepositoryImpl struct {
	DB *sql.DB
}

func NewDealRepository(pg *database.PostgresDB) DealRepository {
	return &DealRepositoryImpl{DB: pg.DB}
}

func (r *DealRepositoryImpl) ListStages(ctx context.Context) ([]models.Stage, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, order_index, color, created_at FROM pipeline_stages ORDER BY order_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []models.Stage{}
	for rows.Next() {
		var s models.Stage
		if err := rows.Scan(&s.ID, &s.Name, &s.OrderIndex, &s.Color, &s.CreatedAt); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

const dealColumns = `id, deal_id, stage_id, client_name, client_initials, avatar_color,
	interested_products, estimated_budget, margin, status, shipping_date, notes,
	order_index, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (models.Deal, error) {
	var (
		d        models.Deal
		shipping sql.NullTime
		notes    sql.NullString
	)
	err := row.Scan(&d.ID, &d.DealCode, &d.StageID, &d.ClientName, &d.ClientInitials, &d.AvatarColor,
		&d.InterestedProducts, &d.EstimatedBudget, &d.Margin, &d.Status, &shipping, &notes,
		&d.OrderIndex, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return d, err
	}
	if shipping.Valid {
		v := shipping.Time.Format(dateLayout)
		d.ShippingDate = &v
	}
	if notes.Valid {
		v := notes.String
		d.Notes = &v
	}
	d.Products = []models.Product{}
	d.Tags = []models.Tag{}
	d.Activities = []models.Activity{}
	return d, nil
}

// ListDealsWithDetails returns every deal with its products, tags and activities.
// Children are fetched with one query per table keyed by the deal ids.
func (r *DealRepositoryImpl) ListDealsWithDetails(ctx context.Context) ([]models.Deal, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+dealColumns+` FROM deals ORDER BY order_index, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deals := []models.Deal{}
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachDetails(ctx, deals); err != nil {
		return nil, err
	}
	return deals, nil
}

func (r *DealRepositoryImpl) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	d, err := scanDeal(r.DB.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	deals := []models.Deal{d}
	if err := r.attachDetails(ctx, deals); err != nil {
		return nil, err
	}
	return &deals[0], nil
}

func (r *DealRepositoryImpl) attachDetails(ctx context.Context, deals []models.Deal) error {
	if len(deals) == 0 {
		return nil
	}
	ids := make([]string, len(deals))
	byID := make(map[string]*models.Deal, len(deals))
	for i := range deals {
		ids[i] = deals[i].ID
		byID[deals[i].ID] = &deals[i]
	}

	products, err := r.DB.QueryContext(ctx, `
		SELECT id, deal_id, product_name, quantity, unit_price, total_price, order_index, created_at
		FROM deal_products WHERE deal_id = ANY($1) ORDER BY order_index`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	for products.Next() {
		var p models.Product
		if err := products.Scan(&p.ID, &p.DealID, &p.ProductName, &p.Quantity, &p.UnitPrice, &p.TotalPrice, &p.OrderIndex, &p.CreatedAt); err != nil {
			products.Close()
			return err
		}
		if d := byID[p.DealID]; d != nil {
			d.Products = append(d.Products, p)
		}
	}
	products.Close()
	if err := products.Err(); err != nil {
		return err
	}

	tags, err := r.DB.QueryContext(ctx, `
		SELECT id, deal_id, tag, color, created_at
		FROM deal_tags WHERE deal_id = ANY($1) ORDER BY created_at`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	for tags.Next() {
		var t models.Tag
		if err := tags.Scan(&t.ID, &t.DealID, &t.Tag, &t.Color, &t.CreatedAt); err != nil {
			tags.Close()
			return err
		}
		if d := byID[t.DealID]; d != nil {
			d.Tags = append(d.Tags, t)
		}
	}
	tags.Close()
	if err := tags.Err(); err != nil {
		return err
	}

	activities, err := r.DB.QueryContext(ctx, `
		SELECT id, deal_id, activity_type, title, description, metadata, created_at
		FROM deal_activities WHERE deal_id = ANY($1) ORDER BY created_at DESC`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	defer activities.Close()
	for activities.Next() {
		a, err := ScanActivity(activities)
		if err != nil {
			return err
		}
		if d := byID[a.DealID]; d != nil {
			d.Activities = append(d.Activities, a)
		}
	}
	return activities.Err()
}

// ScanActivity reads one deal_activities row in column order
// id, deal_id, activity_type, title, description, metadata, created_at.
func ScanActivity(row rowScanner) (models.Activity, error) {
	var (
		a    models.Activity
		desc sql.NullString
		meta []byte
	)
	if err := row.Scan(&a.ID, &a.DealID, &a.ActivityType, &a.Title, &desc, &meta, &a.CreatedAt); err != nil {
		return a, err
	}
	if desc.Valid {
		v := desc.String
		a.Description = &v
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return a, fmt.Errorf("decode activity metadata: %w", err)
		}
	}
	return a, nil
}

func (r *DealRepositoryImpl) CreateDeal(ctx context.Context, deal *models.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	deal.CreatedAt, deal.UpdatedAt = now, now

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO deals (id, deal_id, stage_id, client_name, client_initials, avatar_color,
			interested_products, estimated_budget, margin, status, shipping_date, notes,
			order_index, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		deal.ID, deal.DealCode, deal.StageID, deal.ClientName, deal.ClientInitials, deal.AvatarColor,
		deal.InterestedProducts, deal.EstimatedBudget, deal.Margin, deal.Status, deal.ShippingDate, deal.Notes,
		deal.OrderIndex, deal.CreatedBy, now)
	if err != nil {
		return mapWriteError(err)
	}
	return r.insertChildren(ctx, deal)
}

// UpdateDeal writes the deal fields, then replaces its products and tags by
// deleting every existing row and inserting the given ones. The steps are not
// wrapped in a transaction.
func (r *DealRepositoryImpl) UpdateDeal(ctx context.Context, deal *models.Deal) error {
	if _, err := uuid.Parse(deal.ID); err != nil {
		return ErrNotFound
	}
	deal.UpdatedAt = time.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE deals SET deal_id = $2, stage_id = $3, client_name = $4, client_initials = $5,
			avatar_color = $6, interested_products = $7, estimated_budget = $8, margin = $9,
			status = $10, shipping_date = $11, notes = $12, updated_at = $13
		WHERE id = $1`,
		deal.ID, deal.DealCode, deal.StageID, deal.ClientName, deal.ClientInitials,
		deal.AvatarColor, deal.InterestedProducts, deal.EstimatedBudget, deal.Margin,
		deal.Status, deal.ShippingDate, deal.Notes, deal.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if _, err := r.DB.ExecContext(ctx, `DELETE FROM deal_products WHERE deal_id = $1`, deal.ID); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM deal_tags WHERE deal_id = $1`, deal.ID); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	return r.insertChildren(ctx, deal)
}

func (r *DealRepositoryImpl) insertChildren(ctx context.Context, deal *models.Deal) error {
	now := time.Now().UTC()
	for i := range deal.Products {
		p := &deal.Products[i]
		p.ID = uuid.NewString()
		p.DealID = deal.ID
		p.CreatedAt = now
		if _, err := r.DB.ExecContext(ctx, `
			INSERT INTO deal_products (id, deal_id, product_name, quantity, unit_price, total_price, order_index, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.DealID, p.ProductName, p.Quantity, p.UnitPrice, p.TotalPrice, p.OrderIndex, p.CreatedAt); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
	}
	for i := range deal.Tags {
		t := &deal.Tags[i]
		t.ID = uuid.NewString()
		t.DealID = deal.ID
		t.CreatedAt = now
		if _, err := r.DB.ExecContext(ctx, `
			INSERT INTO deal_tags (id, deal_id, tag, color, created_at) VALUES ($1, $2, $3, $4, $5)`,
			t.ID, t.DealID, t.Tag, t.Color, t.CreatedAt); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

// MoveDeal sets the deal's stage. Zero affected rows is reported as ErrNotFound.
func (r *DealRepositoryImpl) MoveDeal(ctx context.Context, dealID, stageID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE deals SET stage_id = $1, updated_at = $2 WHERE id = $3`, stageID, at, dealID)
	if err != nil {
		return mapWriteError(err)
	}
	return requireRow(res)
}

func (r *DealRepositoryImpl) DeleteDeal(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *DealRepositoryImpl) CountDealsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM deals WHERE created_at >= $1`, since).Scan(&n)
	return n, err
}

// SeedStages inserts stages only when the table is empty and reports how many were written.
func (r *DealRepositoryImpl) SeedStages(ctx context.Context, stages []models.Stage) (int, error) {
	var existing int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pipeline_stages`).Scan(&existing); err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}
	for _, s := range stages {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if _, err := r.DB.ExecContext(ctx,
			`INSERT INTO pipeline_stages (id, name, order_index, color) VALUES ($1, $2, $3, $4)`,
			s.ID, s.Name, s.OrderIndex, s.Color); err != nil {
			return 0, err
		}
	}
	return len(stages), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// mapWriteError turns constraint violations into the package sentinels.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrStageNotFound, pqErr.Message)
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Message)
		}
	}
	return err
}
