package deal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-pipeline/internal/common/models"
	"go-pipeline/internal/features/audit"

	"go.uber.org/zap"
)

const (
	auditModule        = "deals"
	DefaultAvatarColor = "#3B82F6"
	DefaultTagColor    = "#6366F1"
)

// ValidationError reports a rejected deal payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalidator is notified after every successful write.
type Invalidator interface {
	Invalidate()
}

type DealService interface {
	ListStages(ctx context.Context) ([]models.Stage, error)
	ListDeals(ctx context.Context) ([]models.Deal, error)
	GetDeal(ctx context.Context, id string) (*models.Deal, error)
	CreateDeal(ctx context.Context, deal models.Deal) (*models.Deal, error)
	UpdateDeal(ctx context.Context, id string, deal models.Deal) (*models.Deal, error)
	DeleteDeal(ctx context.Context, id string) error
}

type DealServiceImpl struct {
	Repo         DealRepository
	AuditService audit.AuditService
	Board        Invalidator
	Logger       *zap.Logger
	now          func() time.Time
}

func NewDealService(repo DealRepository, auditService audit.AuditService, board Invalidator, logger *zap.Logger) DealService {
	return &DealServiceImpl{
		Repo:         repo,
		AuditService: auditService,
		Board:        board,
		Logger:       logger,
		now:          time.Now,
	}
}

func (s *DealServiceImpl) ListStages(ctx context.Context) ([]models.Stage, error) {
	return s.Repo.ListStages(ctx)
}

func (s *DealServiceImpl) ListDeals(ctx context.Context) ([]models.Deal, error) {
	return s.Repo.ListDealsWithDetails(ctx)
}

func (s *DealServiceImpl) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	return s.Repo.GetDeal(ctx, id)
}

func (s *DealServiceImpl) CreateDeal(ctx context.Context, deal models.Deal) (*models.Deal, error) {
	if err := s.normalize(&deal); err != nil {
		return nil, err
	}
	if deal.DealCode == "" {
		code, err := s.nextDealCode(ctx)
		if err != nil {
			return nil, err
		}
		deal.DealCode = code
	}
	deal.ID = ""
	deal.OrderIndex = 0
	deal.CreatedBy = audit.ActorFromContext(ctx)

	if err := s.Repo.CreateDeal(ctx, &deal); err != nil {
		return nil, err
	}

	s.logAudit(ctx, models.AuditActionCreate, deal.ID, map[string]models.Change{
		"deal_id":     {New: deal.DealCode},
		"stage_id":    {New: deal.StageID},
		"client_name": {New: deal.ClientName},
	})
	s.Board.Invalidate()
	return &deal, nil
}

func (s *DealServiceImpl) UpdateDeal(ctx context.Context, id string, deal models.Deal) (*models.Deal, error) {
	old, err := s.Repo.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.normalize(&deal); err != nil {
		return nil, err
	}
	deal.ID = id
	if deal.DealCode == "" {
		deal.DealCode = old.DealCode
	}
	deal.OrderIndex = old.OrderIndex
	deal.CreatedBy = old.CreatedBy
	deal.CreatedAt = old.CreatedAt

	if err := s.Repo.UpdateDeal(ctx, &deal); err != nil {
		return nil, err
	}

	s.logAudit(ctx, models.AuditActionUpdate, id, diffDeals(*old, deal))
	s.Board.Invalidate()
	return &deal, nil
}

func (s *DealServiceImpl) DeleteDeal(ctx context.Context, id string) error {
	if err := s.Repo.DeleteDeal(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, models.AuditActionDelete, id, nil)
	s.Board.Invalidate()
	return nil
}

// normalize validates the payload and fills the defaults a new or edited deal
// gets: initials, avatar colour, status, tag colour and product totals.
func (s *DealServiceImpl) normalize(d *models.Deal) error {
	d.ClientName = strings.TrimSpace(d.ClientName)
	if d.ClientName == "" {
		return &ValidationError{Field: "client_name", Message: "is required"}
	}
	if d.StageID == "" {
		return &ValidationError{Field: "stage_id", Message: "is required"}
	}
	if d.Status == "" {
		d.Status = models.DealStatusUnpaid
	}
	if !d.Status.Valid() {
		return &ValidationError{Field: "status", Message: "must be paid or unpaid"}
	}
	if d.EstimatedBudget.IsNegative() {
		return &ValidationError{Field: "estimated_budget", Message: "must not be negative"}
	}
	if d.ShippingDate != nil {
		if *d.ShippingDate == "" {
			d.ShippingDate = nil
		} else if _, err := time.Parse(dateLayout, *d.ShippingDate); err != nil {
			return &ValidationError{Field: "shipping_date", Message: "must be YYYY-MM-DD"}
		}
	}
	if d.ClientInitials == "" {
		d.ClientInitials = initials(d.ClientName)
	}
	if d.AvatarColor == "" {
		d.AvatarColor = DefaultAvatarColor
	}

	for i := range d.Products {
		p := &d.Products[i]
		if strings.TrimSpace(p.ProductName) == "" {
			return &ValidationError{Field: fmt.Sprintf("products[%d].product_name", i), Message: "is required"}
		}
		if p.Quantity < 0 {
			return &ValidationError{Field: fmt.Sprintf("products[%d].quantity", i), Message: "must not be negative"}
		}
		if p.UnitPrice.IsNegative() {
			return &ValidationError{Field: fmt.Sprintf("products[%d].unit_price", i), Message: "must not be negative"}
		}
		p.OrderIndex = i
		p.RecomputeTotal()
	}
	for i := range d.Tags {
		t := &d.Tags[i]
		t.Tag = strings.TrimSpace(t.Tag)
		if t.Tag == "" {
			return &ValidationError{Field: fmt.Sprintf("tags[%d].tag", i), Message: "is required"}
		}
		if t.Color == "" {
			t.Color = DefaultTagColor
		}
	}
	d.Activities = nil
	return nil
}

func (s *DealServiceImpl) nextDealCode(ctx context.Context) (string, error) {
	now := s.now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	n, err := s.Repo.CountDealsSince(ctx, yearStart)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("MON-%d-%03d", now.Year(), n+1), nil
}

func (s *DealServiceImpl) logAudit(ctx context.Context, action models.AuditAction, id string, changes map[string]models.Change) {
	if err := s.AuditService.LogChange(ctx, action, auditModule, id, changes); err != nil {
		s.Logger.Warn("Failed to write audit entry", zap.String("deal_id", id), zap.Error(err))
	}
}

// initials takes the first two letters of the client name, upper-cased.
func initials(name string) string {
	r := []rune(strings.ToUpper(name))
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}

func diffDeals(old, updated models.Deal) map[string]models.Change {
	changes := map[string]models.Change{}
	add := func(field string, o, n any) {
		changes[field] = models.Change{Old: o, New: n}
	}
	if old.StageID != updated.StageID {
		add("stage_id", old.StageID, updated.StageID)
	}
	if old.ClientName != updated.ClientName {
		add("client_name", old.ClientName, updated.ClientName)
	}
	if old.Status != updated.Status {
		add("status", old.Status, updated.Status)
	}
	if !old.EstimatedBudget.Equal(updated.EstimatedBudget) {
		add("estimated_budget", old.EstimatedBudget.String(), updated.EstimatedBudget.String())
	}
	if !old.Margin.Equal(updated.Margin) {
		add("margin", old.Margin.String(), updated.Margin.String())
	}
	if len(old.Products) != len(updated.Products) {
		add("products", len(old.Products), len(updated.Products))
	}
	if len(old.Tags) != len(updated.Tags) {
		add("tags", len(old.Tags), len(updated.Tags))
	}
	return changes
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
