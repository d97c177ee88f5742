package activity

import (
	"errors"

	"go-pipeline/internal/common/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var displayNames = map[models.ActivityType]string{
	models.ActivityTypeGmail:   "Gmail",
	models.ActivityTypeTwilio:  "Twilio",
	models.ActivityTypeShopify: "Shopify",
}

type ActivityController struct {
	Service ActivityService
	Logger  *zap.Logger
}

func NewActivityController(service ActivityService, logger *zap.Logger) *ActivityController {
	return &ActivityController{Service: service, Logger: logger}
}

// ListIntegrationActivities godoc
// @Summary Latest activities from one integration
// @Description Returns the ten newest activities of the given type for a deal
// @Tags integrations
// @Produce json
// @Param type path string true "gmail, twilio or shopify"
// @Param dealId query string true "Deal ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/integrations/{type} [get]
func (ctrl *ActivityController) ListIntegrationActivities(c *fiber.Ctx) error {
	typ := models.ActivityType(c.Params("type"))
	name, ok := displayNames[typ]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown integration"})
	}

	dealID := c.Query("dealId")
	if dealID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Deal ID is required"})
	}

	activities, err := ctrl.Service.Recent(c.UserContext(), typ, dealID)
	if err != nil {
		ctrl.Logger.Error(name+" API error", zap.String("deal_id", dealID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch " + name + " activities",
		})
	}
	return c.JSON(fiber.Map{"activities": activities})
}

// ReceiveWebhook godoc
// @Summary Receive an integration event
// @Description Validates the payload and appends one activity to the deal
// @Tags integrations
// @Accept json
// @Produce json
// @Param type path string true "gmail, twilio or shopify"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/integrations/{type} [post]
func (ctrl *ActivityController) ReceiveWebhook(c *fiber.Ctx) error {
	typ := models.ActivityType(c.Params("type"))
	name, ok := displayNames[typ]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown integration"})
	}

	activity, err := ctrl.Service.Ingest(c.UserContext(), typ, c.Body())
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message})
		}
		ctrl.Logger.Error(name+" webhook error", zap.String("ip", c.IP()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process " + name + " event",
		})
	}
	return c.JSON(fiber.Map{"activity": activity})
}

// AddNote godoc
// @Summary Add a note to a deal
// @Tags deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/deals/{id}/notes [post]
func (ctrl *ActivityController) AddNote(c *fiber.Ctx) error {
	dealID := c.Params("id")
	activity, err := ctrl.Service.AddNote(c.UserContext(), dealID, c.Body())
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message})
		}
		ctrl.Logger.Error("Failed to add note", zap.String("deal_id", dealID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add note"})
	}
	return c.JSON(fiber.Map{"activity": activity})
}

// Timeline godoc
// @Summary List every activity of a deal, newest first
// @Tags deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/deals/{id}/activities [get]
func (ctrl *ActivityController) Timeline(c *fiber.Ctx) error {
	dealID := c.Params("id")
	activities, err := ctrl.Service.Timeline(c.UserContext(), dealID)
	if err != nil {
		ctrl.Logger.Error("Failed to list activities", zap.String("deal_id", dealID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch activities"})
	}
	return c.JSON(fiber.Map{"activities": activities})
}
