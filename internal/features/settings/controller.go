package settings

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SettingsController struct {
	Service SettingsService
	Logger  *zap.Logger
}

func NewSettingsController(service SettingsService, logger *zap.Logger) *SettingsController {
	return &SettingsController{
		Service: service,
		Logger:  logger,
	}
}

// GetIntegrations godoc
// @Summary Get integration settings
// @Description Get the caller's gmail, twilio and shopify settings; api keys are masked
// @Tags settings
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/settings/integrations [get]
func (ctrl *SettingsController) GetIntegrations(c *fiber.Ctx) error {
	integrations, err := ctrl.Service.GetIntegrations(c.UserContext())
	if err != nil {
		ctrl.Logger.Error("Error loading settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error loading settings",
		})
	}
	return c.JSON(fiber.Map{"integrations": integrations})
}

// UpdateIntegrations godoc
// @Summary Update integration settings
// @Description Upserts each integration for the caller
// @Tags settings
// @Accept json
// @Produce json
// @Param settings body UpdateIntegrationsRequest true "Integration settings"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/settings/integrations [put]
func (ctrl *SettingsController) UpdateIntegrations(c *fiber.Ctx) error {
	var req UpdateIntegrationsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	integrations, err := ctrl.Service.UpdateIntegrations(c.UserContext(), req.Integrations)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message})
		}
		ctrl.Logger.Error("Error saving settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error saving settings",
		})
	}

	return c.JSON(fiber.Map{
		"message":      "Integration settings saved",
		"integrations": integrations,
	})
}
