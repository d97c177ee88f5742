package audit

import (
	"context"
	"time"

	"go-pipeline/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const systemActor = "system"

type AuditService interface {
	LogChange(ctx context.Context, action models.AuditAction, module string, recordID string, changes map[string]models.Change) error
	ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]models.AuditLog, error)
}

type AuditServiceImpl struct {
	Repo AuditRepository
	now  func() time.Time
}

func NewAuditService(repo AuditRepository) AuditService {
	return &AuditServiceImpl{Repo: repo, now: time.Now}
}

func (s *AuditServiceImpl) LogChange(ctx context.Context, action models.AuditAction, module string, recordID string, changes map[string]models.Change) error {
	log := models.AuditLog{
		ID:        primitive.NewObjectID(),
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		ActorID:   ActorFromContext(ctx),
		Changes:   changes,
		Timestamp: s.now(),
	}

	return s.Repo.Create(ctx, log)
}

func (s *AuditServiceImpl) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]models.AuditLog, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.Repo.List(ctx, filters, limit, offset)
}

// ActorFromContext returns the authenticated user id, or "system" for background work.
func ActorFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(models.ActorIDKey).(string); ok && id != "" {
		return id
	}
	return systemActor
}
