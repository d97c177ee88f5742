package settings

import (
	"time"

	"go-pipeline/internal/common/models"
)

// Integrations lists the configurable integrations in display order.
var Integrations = []models.ActivityType{
	models.ActivityTypeGmail,
	models.ActivityTypeTwilio,
	models.ActivityTypeShopify,
}

// IntegrationSetting is one user's configuration for one integration.
type IntegrationSetting struct {
	IntegrationType models.ActivityType `json:"integration_type"`
	Enabled         bool                `json:"enabled"`
	ApiKey          string              `json:"api_key"`
	Config          map[string]any      `json:"config,omitempty"`
	UpdatedAt       *time.Time          `json:"updated_at,omitempty"`
}

type UpdateIntegrationsRequest struct {
	Integrations []IntegrationSetting `json:"integrations"`
}
