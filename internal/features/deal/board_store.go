package deal

import (
	"context"
	"time"

	"go-pipeline/internal/common/models"
	"go-pipeline/internal/features/audit"

	"go.uber.org/zap"
)

// BoardStore is the read and move surface the board synchronizer runs on. Moves
// are recorded in the audit trail after the write succeeds.
type BoardStore struct {
	repo   DealRepository
	audit  audit.AuditService
	logger *zap.Logger
}

func NewBoardStore(repo DealRepository, auditService audit.AuditService, logger *zap.Logger) *BoardStore {
	return &BoardStore{repo: repo, audit: auditService, logger: logger}
}

func (s *BoardStore) ListStages(ctx context.Context) ([]models.Stage, error) {
	return s.repo.ListStages(ctx)
}

func (s *BoardStore) ListDealsWithDetails(ctx context.Context) ([]models.Deal, error) {
	return s.repo.ListDealsWithDetails(ctx)
}

func (s *BoardStore) MoveDeal(ctx context.Context, dealID, stageID string, at time.Time) error {
	if err := s.repo.MoveDeal(ctx, dealID, stageID, at); err != nil {
		return err
	}
	if err := s.audit.LogChange(ctx, models.AuditActionMove, auditModule, dealID, map[string]models.Change{
		"stage_id": {New: stageID},
	}); err != nil {
		s.logger.Warn("Failed to write audit entry", zap.String("deal_id", dealID), zap.Error(err))
	}
	return nil
}
