package settings

import (
	"context"
	"fmt"
	"strings"

	"go-pipeline/internal/common/models"
	"go-pipeline/internal/features/audit"

	"go.uber.org/zap"
)

const maskPrefix = "****"

// ValidationError reports a rejected settings payload.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type SettingsService interface {
	GetIntegrations(ctx context.Context) ([]IntegrationSetting, error)
	UpdateIntegrations(ctx context.Context, settings []IntegrationSetting) ([]IntegrationSetting, error)
}

type SettingsServiceImpl struct {
	Repo         SettingsRepository
	AuditService audit.AuditService
	Logger       *zap.Logger
}

func NewSettingsService(repo SettingsRepository, auditService audit.AuditService, logger *zap.Logger) SettingsService {
	return &SettingsServiceImpl{
		Repo:         repo,
		AuditService: auditService,
		Logger:       logger,
	}
}

// GetIntegrations returns all three integrations for the caller with api keys
// masked. Integrations the user never saved come back disabled with no key.
func (s *SettingsServiceImpl) GetIntegrations(ctx context.Context) ([]IntegrationSetting, error) {
	saved, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := merge(saved)
	for i := range out {
		out[i].ApiKey = MaskKey(out[i].ApiKey)
	}
	return out, nil
}

func (s *SettingsServiceImpl) UpdateIntegrations(ctx context.Context, updates []IntegrationSetting) ([]IntegrationSetting, error) {
	for _, u := range updates {
		if !supported(u.IntegrationType) {
			return nil, &ValidationError{Message: fmt.Sprintf("unknown integration type %q", u.IntegrationType)}
		}
	}

	saved, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	current := map[models.ActivityType]IntegrationSetting{}
	for _, c := range merge(saved) {
		current[c.IntegrationType] = c
	}

	user := audit.ActorFromContext(ctx)
	for _, u := range updates {
		old := current[u.IntegrationType]
		// A masked key echoed back from GET keeps the stored key.
		if strings.HasPrefix(u.ApiKey, maskPrefix) {
			u.ApiKey = old.ApiKey
		}
		if err := s.Repo.Upsert(ctx, user, u); err != nil {
			return nil, err
		}
		if err := s.AuditService.LogChange(ctx, models.AuditActionSettings, "settings", string(u.IntegrationType), map[string]models.Change{
			"enabled": {Old: old.Enabled, New: u.Enabled},
			"api_key": {Old: MaskKey(old.ApiKey), New: MaskKey(u.ApiKey)},
		}); err != nil {
			s.Logger.Warn("Failed to write audit entry", zap.String("integration", string(u.IntegrationType)), zap.Error(err))
		}
	}
	return s.GetIntegrations(ctx)
}

func (s *SettingsServiceImpl) load(ctx context.Context) ([]IntegrationSetting, error) {
	return s.Repo.ListByUser(ctx, audit.ActorFromContext(ctx))
}

// merge returns one entry per supported integration in display order.
func merge(saved []IntegrationSetting) []IntegrationSetting {
	byType := make(map[models.ActivityType]IntegrationSetting, len(saved))
	for _, s := range saved {
		byType[s.IntegrationType] = s
	}
	out := make([]IntegrationSetting, 0, len(Integrations))
	for _, typ := range Integrations {
		if s, ok := byType[typ]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, IntegrationSetting{IntegrationType: typ})
	}
	return out
}

func supported(typ models.ActivityType) bool {
	for _, t := range Integrations {
		if t == typ {
			return true
		}
	}
	return false
}

// MaskKey hides all but the last four characters of key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	r := []rune(key)
	if len(r) <= 4 {
		return maskPrefix
	}
	return maskPrefix + string(r[len(r)-4:])
}
