package settings

import (
	"context"
	"testing"

	"go-pipeline/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSettingsRepo stores settings per user the way the unique
// (user_id, integration_type) constraint does.
type MockSettingsRepo struct {
	rows map[string]map[models.ActivityType]IntegrationSetting
}

func newMockRepo() *MockSettingsRepo {
	return &MockSettingsRepo{rows: map[string]map[models.ActivityType]IntegrationSetting{}}
}

func (m *MockSettingsRepo) ListByUser(ctx context.Context, userID string) ([]IntegrationSetting, error) {
	out := []IntegrationSetting{}
	for _, s := range m.rows[userID] {
		out = append(out, s)
	}
	return out, nil
}

func (m *MockSettingsRepo) Upsert(ctx context.Context, userID string, s IntegrationSetting) error {
	if m.rows[userID] == nil {
		m.rows[userID] = map[models.ActivityType]IntegrationSetting{}
	}
	m.rows[userID][s.IntegrationType] = s
	return nil
}

type MockAuditService struct {
	Changes []map[string]models.Change
}

func (m *MockAuditService) LogChange(ctx context.Context, action models.AuditAction, module string, recordID string, changes map[string]models.Change) error {
	m.Changes = append(m.Changes, changes)
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]models.AuditLog, error) {
	return nil, nil
}

func userCtx(id string) context.Context {
	return context.WithValue(context.Background(), models.ActorIDKey, id)
}

func TestGetIntegrationsDefaults(t *testing.T) {
	svc := NewSettingsService(newMockRepo(), &MockAuditService{}, zap.NewNop())

	got, err := svc.GetIntegrations(userCtx("u1"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, typ := range Integrations {
		assert.Equal(t, typ, got[i].IntegrationType)
		assert.False(t, got[i].Enabled)
		assert.Empty(t, got[i].ApiKey)
	}
}

func TestUpdateIntegrationsMergesAndMasks(t *testing.T) {
	repo := newMockRepo()
	auditSvc := &MockAuditService{}
	svc := NewSettingsService(repo, auditSvc, zap.NewNop())

	got, err := svc.UpdateIntegrations(userCtx("u1"), []IntegrationSetting{
		{IntegrationType: models.ActivityTypeTwilio, Enabled: true, ApiKey: "sk_live_abcd1234"},
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, models.ActivityTypeTwilio, got[1].IntegrationType)
	assert.True(t, got[1].Enabled)
	assert.Equal(t, "****1234", got[1].ApiKey)
	assert.False(t, got[0].Enabled)

	assert.Equal(t, "sk_live_abcd1234", repo.rows["u1"][models.ActivityTypeTwilio].ApiKey)
	require.Len(t, auditSvc.Changes, 1)
	assert.Equal(t, "****1234", auditSvc.Changes[0]["api_key"].New)
}

func TestMaskedKeyKeepsStoredKey(t *testing.T) {
	repo := newMockRepo()
	svc := NewSettingsService(repo, &MockAuditService{}, zap.NewNop())
	ctx := userCtx("u1")

	_, err := svc.UpdateIntegrations(ctx, []IntegrationSetting{
		{IntegrationType: models.ActivityTypeGmail, Enabled: true, ApiKey: "gmail-secret-9876"},
	})
	require.NoError(t, err)

	_, err = svc.UpdateIntegrations(ctx, []IntegrationSetting{
		{IntegrationType: models.ActivityTypeGmail, Enabled: false, ApiKey: "****9876"},
	})
	require.NoError(t, err)

	stored := repo.rows["u1"][models.ActivityTypeGmail]
	assert.Equal(t, "gmail-secret-9876", stored.ApiKey)
	assert.False(t, stored.Enabled)
}

func TestSettingsArePerUser(t *testing.T) {
	repo := newMockRepo()
	svc := NewSettingsService(repo, &MockAuditService{}, zap.NewNop())

	_, err := svc.UpdateIntegrations(userCtx("u1"), []IntegrationSetting{
		{IntegrationType: models.ActivityTypeShopify, Enabled: true},
	})
	require.NoError(t, err)

	other, err := svc.GetIntegrations(userCtx("u2"))
	require.NoError(t, err)
	assert.False(t, other[2].Enabled)
}

func TestUnknownIntegrationRejected(t *testing.T) {
	repo := newMockRepo()
	svc := NewSettingsService(repo, &MockAuditService{}, zap.NewNop())

	_, err := svc.UpdateIntegrations(userCtx("u1"), []IntegrationSetting{{IntegrationType: "slack"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, repo.rows)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, "****", MaskKey("abc"))
	assert.Equal(t, "****", MaskKey("abcd"))
	assert.Equal(t, "****bcde", MaskKey("abcde"))
}
