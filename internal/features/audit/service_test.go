package audit

import (
	"context"
	"testing"
	"time"

	"go-pipeline/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockAuditRepo struct {
	Created    []models.AuditLog
	LimitArg   int64
	OffsetArg  int64
	FiltersArg map[string]interface{}
}

func (m *MockAuditRepo) Create(ctx context.Context, log models.AuditLog) error {
	m.Created = append(m.Created, log)
	return nil
}

func (m *MockAuditRepo) List(ctx context.Context, filters map[string]interface{}, limit, offset int64) ([]models.AuditLog, error) {
	m.FiltersArg = filters
	m.LimitArg = limit
	m.OffsetArg = offset
	return m.Created, nil
}

func TestLogChangeRecordsActorFromContext(t *testing.T) {
	repo := &MockAuditRepo{}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &AuditServiceImpl{Repo: repo, now: func() time.Time { return at }}

	ctx := context.WithValue(context.Background(), models.ActorIDKey, "user-7")
	err := svc.LogChange(ctx, models.AuditActionMove, "deals", "d1", map[string]models.Change{
		"stage_id": {Old: "s1", New: "s2"},
	})
	require.NoError(t, err)

	require.Len(t, repo.Created, 1)
	entry := repo.Created[0]
	assert.Equal(t, "user-7", entry.ActorID)
	assert.Equal(t, models.AuditActionMove, entry.Action)
	assert.Equal(t, "d1", entry.RecordID)
	assert.Equal(t, at, entry.Timestamp)
	assert.False(t, entry.ID.IsZero())
}

func TestLogChangeWithoutActorIsSystem(t *testing.T) {
	repo := &MockAuditRepo{}
	svc := NewAuditService(repo)

	require.NoError(t, svc.LogChange(context.Background(), models.AuditActionCreate, "deals", "d1", nil))
	assert.Equal(t, "system", repo.Created[0].ActorID)
}

func TestListLogsNormalizesPaging(t *testing.T) {
	repo := &MockAuditRepo{}
	svc := NewAuditService(repo)

	_, err := svc.ListLogs(context.Background(), map[string]interface{}{"module": "deals"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), repo.LimitArg)
	assert.Equal(t, int64(0), repo.OffsetArg)

	_, err = svc.ListLogs(context.Background(), nil, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(40), repo.OffsetArg)
}

func TestDisabledMongoDiscardsEntries(t *testing.T) {
	repo := NewAuditRepository(nil)
	require.NoError(t, repo.Create(context.Background(), models.AuditLog{}))

	logs, err := repo.List(context.Background(), nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
