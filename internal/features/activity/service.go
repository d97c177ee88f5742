package activity

import (
	"context"
	"time"

	"go-pipeline/internal/common/models"
	"go-pipeline/internal/features/audit"
	"go-pipeline/internal/features/deal"

	"go.uber.org/zap"
)

// webhookListLimit is how many activities GET /api/integrations/:type returns.
const webhookListLimit = 10

type ActivityService interface {
	Ingest(ctx context.Context, typ models.ActivityType, body []byte) (*models.Activity, error)
	Recent(ctx context.Context, typ models.ActivityType, dealID string) ([]models.Activity, error)
	AddNote(ctx context.Context, dealID string, body []byte) (*models.Activity, error)
	Timeline(ctx context.Context, dealID string) ([]models.Activity, error)
}

type ActivityServiceImpl struct {
	Repo         ActivityRepository
	Registry     *Registry
	AuditService audit.AuditService
	Board        deal.Invalidator
	Logger       *zap.Logger
	now          func() time.Time
}

func NewActivityService(repo ActivityRepository, registry *Registry, auditService audit.AuditService, board deal.Invalidator, logger *zap.Logger) ActivityService {
	return &ActivityServiceImpl{
		Repo:         repo,
		Registry:     registry,
		AuditService: auditService,
		Board:        board,
		Logger:       logger,
		now:          time.Now,
	}
}

// Ingest validates a webhook payload, maps it to an activity and stores it.
// Nothing is written when validation fails.
func (s *ActivityServiceImpl) Ingest(ctx context.Context, typ models.ActivityType, body []byte) (*models.Activity, error) {
	now := s.now()
	m, err := s.Registry.Map(typ, body, now)
	if err != nil {
		return nil, err
	}

	a := &models.Activity{
		DealID:       m.DealID,
		ActivityType: typ,
		Title:        m.Title,
		Description:  m.Description,
		Metadata:     m.Metadata,
		CreatedAt:    now.UTC(),
	}
	if err := s.Repo.Insert(ctx, a); err != nil {
		return nil, err
	}
	s.Logger.Info("Activity recorded",
		zap.String("deal_id", a.DealID),
		zap.String("type", string(typ)),
	)
	s.Board.Invalidate()
	return a, nil
}

func (s *ActivityServiceImpl) Recent(ctx context.Context, typ models.ActivityType, dealID string) ([]models.Activity, error) {
	if !s.Registry.Supports(typ) {
		return nil, ErrUnknownIntegration
	}
	return s.Repo.ListByType(ctx, dealID, typ, webhookListLimit)
}

func (s *ActivityServiceImpl) AddNote(ctx context.Context, dealID string, body []byte) (*models.Activity, error) {
	title, desc, err := s.Registry.Note(body)
	if err != nil {
		return nil, err
	}

	a := &models.Activity{
		DealID:       dealID,
		ActivityType: models.ActivityTypeNote,
		Title:        title,
		Description:  desc,
		Metadata:     map[string]any{"author": audit.ActorFromContext(ctx)},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Repo.Insert(ctx, a); err != nil {
		return nil, err
	}
	if err := s.AuditService.LogChange(ctx, models.AuditActionNote, "deals", dealID, map[string]models.Change{
		"note": {New: title},
	}); err != nil {
		s.Logger.Warn("Failed to write audit entry", zap.String("deal_id", dealID), zap.Error(err))
	}
	s.Board.Invalidate()
	return a, nil
}

func (s *ActivityServiceImpl) Timeline(ctx context.Context, dealID string) ([]models.Activity, error) {
	return s.Repo.ListByDeal(ctx, dealID)
}
