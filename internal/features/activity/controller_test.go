package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go-pipeline/internal/common/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockActivityRepo struct {
	mu        sync.Mutex
	Inserted  []models.Activity
	InsertErr error
	ListErr   error
}

func (m *MockActivityRepo) Insert(ctx context.Context, a *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	a.ID = fmt.Sprintf("a%d", len(m.Inserted)+1)
	m.Inserted = append(m.Inserted, *a)
	return nil
}

func (m *MockActivityRepo) ListByType(ctx context.Context, dealID string, typ models.ActivityType, limit int) ([]models.Activity, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := []models.Activity{}
	for i := len(m.Inserted) - 1; i >= 0 && len(out) < limit; i-- {
		a := m.Inserted[i]
		if a.DealID == dealID && a.ActivityType == typ {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockActivityRepo) ListByDeal(ctx context.Context, dealID string) ([]models.Activity, error) {
	out := []models.Activity{}
	for i := len(m.Inserted) - 1; i >= 0; i-- {
		if m.Inserted[i].DealID == dealID {
			out = append(out, m.Inserted[i])
		}
	}
	return out, nil
}

type MockAuditService struct{ Actions []models.AuditAction }

func (m *MockAuditService) LogChange(ctx context.Context, action models.AuditAction, module string, recordID string, changes map[string]models.Change) error {
	m.Actions = append(m.Actions, action)
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]models.AuditLog, error) {
	return nil, nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func newActivityApp(t *testing.T, repo *MockActivityRepo) (*fiber.App, *countingInvalidator) {
	t.Helper()
	registry, err := NewRegistry()
	require.NoError(t, err)
	inv := &countingInvalidator{}
	svc := NewActivityService(repo, registry, &MockAuditService{}, inv, zap.NewNop()).(*ActivityServiceImpl)
	svc.now = func() time.Time { return receivedAt }

	ctrl := NewActivityController(svc, zap.NewNop())
	app := fiber.New()
	app.Get("/api/integrations/:type", ctrl.ListIntegrationActivities)
	app.Post("/api/integrations/:type", ctrl.ReceiveWebhook)
	app.Post("/api/deals/:id/notes", ctrl.AddNote)
	app.Get("/api/deals/:id/activities", ctrl.Timeline)
	return app, inv
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestShopifyWebhookScenario(t *testing.T) {
	repo := &MockActivityRepo{}
	app, inv := newActivityApp(t, repo)

	status, _ := post(t, app, "/api/integrations/shopify", `{"orderId":"o1"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Empty(t, repo.Inserted)

	status, body := post(t, app, "/api/integrations/shopify", `{"dealId":"d1","orderId":"o1"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, repo.Inserted, 1)
	assert.Equal(t, models.ActivityTypeShopify, repo.Inserted[0].ActivityType)
	assert.Equal(t, "d1", repo.Inserted[0].DealID)
	assert.Equal(t, "Order o1", repo.Inserted[0].Title)

	activity := body["activity"].(map[string]any)
	assert.Equal(t, "shopify", activity["activity_type"])
	assert.Equal(t, 1, inv.n)
}

func TestWebhookAcceptsAnyOptionalFieldValue(t *testing.T) {
	cases := []struct {
		typ  string
		body string
	}{
		{"shopify", `{"dealId":"d1","orderId":"o1","customer":{"first_name":"Ann"}}`},
		{"shopify", `{"dealId":"d1","orderId":"o1","orderName":null}`},
		{"shopify", `{"dealId":"d1","orderId":"o1","totalPrice":null}`},
		{"gmail", `{"dealId":"d1","subject":"hi","from":null}`},
		{"gmail", `{"dealId":"d1","subject":"hi","preview":{"text":"x"}}`},
		{"twilio", `{"dealId":"d1","body":"hi","direction":null,"sid":42}`},
	}
	for _, tc := range cases {
		t.Run(tc.typ+" "+tc.body, func(t *testing.T) {
			repo := &MockActivityRepo{}
			app, _ := newActivityApp(t, repo)

			status, body := post(t, app, "/api/integrations/"+tc.typ, tc.body)
			require.Equal(t, fiber.StatusOK, status, body)
			require.Len(t, repo.Inserted, 1)
			assert.Equal(t, "d1", repo.Inserted[0].DealID)
		})
	}

	repo := &MockActivityRepo{}
	app, _ := newActivityApp(t, repo)
	status, _ := post(t, app, "/api/integrations/shopify", `{"dealId":"d1","orderId":"o1","orderName":null}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Order o1", repo.Inserted[0].Title)
}

func TestWebhookMalformedJSON(t *testing.T) {
	repo := &MockActivityRepo{}
	app, _ := newActivityApp(t, repo)

	status, body := post(t, app, "/api/integrations/gmail", `{"dealId":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid JSON body", body["error"])
	assert.Empty(t, repo.Inserted)
}

func TestWebhookUnknownType(t *testing.T) {
	app, _ := newActivityApp(t, &MockActivityRepo{})

	status, _ := post(t, app, "/api/integrations/slack", `{"dealId":"d1"}`)
	assert.Equal(t, fiber.StatusNotFound, status)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/integrations/slack?dealId=d1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWebhookBackendFailure(t *testing.T) {
	app, inv := newActivityApp(t, &MockActivityRepo{InsertErr: errors.New("connection refused")})

	status, body := post(t, app, "/api/integrations/twilio", `{"dealId":"d1","body":"hi"}`)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Failed to process Twilio event", body["error"])
	assert.Zero(t, inv.n)
}

func TestListRequiresDealID(t *testing.T) {
	app, _ := newActivityApp(t, &MockActivityRepo{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/integrations/gmail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListReturnsNewestTenOfType(t *testing.T) {
	repo := &MockActivityRepo{}
	app, _ := newActivityApp(t, repo)
	for i := 0; i < 12; i++ {
		status, _ := post(t, app, "/api/integrations/gmail", `{"dealId":"d1","subject":"s"}`)
		require.Equal(t, fiber.StatusOK, status)
	}
	status, _ := post(t, app, "/api/integrations/twilio", `{"dealId":"d1","body":"b"}`)
	require.Equal(t, fiber.StatusOK, status)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/integrations/gmail?dealId=d1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Activities []models.Activity `json:"activities"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Activities, 10)
	for _, a := range body.Activities {
		assert.Equal(t, models.ActivityTypeGmail, a.ActivityType)
	}
}

func TestListBackendFailure(t *testing.T) {
	app, _ := newActivityApp(t, &MockActivityRepo{ListErr: errors.New("timeout")})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/integrations/shopify?dealId=d1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestAddNoteAndTimeline(t *testing.T) {
	repo := &MockActivityRepo{}
	app, _ := newActivityApp(t, repo)

	status, _ := post(t, app, "/api/deals/d1/notes", `{"title":"Called","description":"Left voicemail"}`)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = post(t, app, "/api/integrations/gmail", `{"dealId":"d1","subject":"Re: call"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = post(t, app, "/api/deals/d1/notes", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/deals/d1/activities", nil))
	require.NoError(t, err)
	var body struct {
		Activities []models.Activity `json:"activities"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Activities, 2)
	assert.Equal(t, models.ActivityTypeGmail, body.Activities[0].ActivityType)
	assert.Equal(t, models.ActivityTypeNote, body.Activities[1].ActivityType)
}
