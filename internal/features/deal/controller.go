package deal

import (
	"errors"

	"go-pipeline/internal/common/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DealController struct {
	Service DealService
	Logger  *zap.Logger
}

func NewDealController(service DealService, logger *zap.Logger) *DealController {
	return &DealController{Service: service, Logger: logger}
}

// ListStages godoc
// @Summary List pipeline stages
// @Tags deals
// @Produce json
// @Success 200 {array} models.Stage
// @Router /api/stages [get]
func (ctrl *DealController) ListStages(c *fiber.Ctx) error {
	stages, err := ctrl.Service.ListStages(c.UserContext())
	if err != nil {
		return ctrl.fail(c, err)
	}
	return c.JSON(stages)
}

// ListDeals godoc
// @Summary List deals with products, tags and activities
// @Tags deals
// @Produce json
// @Success 200 {array} models.Deal
// @Router /api/deals [get]
func (ctrl *DealController) ListDeals(c *fiber.Ctx) error {
	deals, err := ctrl.Service.ListDeals(c.UserContext())
	if err != nil {
		return ctrl.fail(c, err)
	}
	return c.JSON(deals)
}

// GetDeal godoc
// @Summary Get a deal
// @Tags deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} models.Deal
// @Failure 404 {object} map[string]interface{}
// @Router /api/deals/{id} [get]
func (ctrl *DealController) GetDeal(c *fiber.Ctx) error {
	deal, err := ctrl.Service.GetDeal(c.UserContext(), c.Params("id"))
	if err != nil {
		return ctrl.fail(c, err)
	}
	return c.JSON(deal)
}

// CreateDeal godoc
// @Summary Create a deal
// @Description Products are stored with total_price = quantity * unit_price
// @Tags deals
// @Accept json
// @Produce json
// @Param deal body models.Deal true "Deal"
// @Success 201 {object} models.Deal
// @Failure 400 {object} map[string]interface{}
// @Router /api/deals [post]
func (ctrl *DealController) CreateDeal(c *fiber.Ctx) error {
	var input models.Deal
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	deal, err := ctrl.Service.CreateDeal(c.UserContext(), input)
	if err != nil {
		return ctrl.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(deal)
}

// UpdateDeal godoc
// @Summary Update a deal
// @Description Replaces the deal's products and tags with the ones given
// @Tags deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param deal body models.Deal true "Deal"
// @Success 200 {object} models.Deal
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/deals/{id} [put]
func (ctrl *DealController) UpdateDeal(c *fiber.Ctx) error {
	var input models.Deal
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	deal, err := ctrl.Service.UpdateDeal(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return ctrl.fail(c, err)
	}
	return c.JSON(deal)
}

// DeleteDeal godoc
// @Summary Delete a deal
// @Tags deals
// @Param id path string true "Deal ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Router /api/deals/{id} [delete]
func (ctrl *DealController) DeleteDeal(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteDeal(c.UserContext(), c.Params("id")); err != nil {
		return ctrl.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (ctrl *DealController) fail(c *fiber.Ctx, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, ErrStageNotFound):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Stage does not exist"})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Deal not found"})
	}
	ctrl.Logger.Error("Deal request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save deal"})
}
