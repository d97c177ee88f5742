package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"go-pipeline/internal/board"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PipelineController struct {
	Service PipelineService
	Logger  *zap.Logger
}

func NewPipelineController(service PipelineService, logger *zap.Logger) *PipelineController {
	return &PipelineController{Service: service, Logger: logger}
}

type dragRequest struct {
	DealID string `json:"dealId"`
}

type moveRequest struct {
	DealID  string `json:"dealId"`
	StageID string `json:"stageId"`
}

// GetBoard godoc
// @Summary Get board
// @Description Stages with their deals, per-stage totals and the header aggregates
// @Tags board
// @Produce json
// @Success 200 {object} board.Board
// @Router /api/board [get]
func (c *PipelineController) GetBoard(ctx *fiber.Ctx) error {
	return ctx.JSON(c.Service.Board())
}

// BeginDrag godoc
// @Summary Lift a deal
// @Description Mark a deal as being dragged
// @Tags board
// @Accept json
// @Produce json
// @Param body body dragRequest true "Deal to lift"
// @Success 200 {object} board.Board
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/board/drag [post]
func (c *PipelineController) BeginDrag(ctx *fiber.Ctx) error {
	var req dragRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.DealID) == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Deal ID is required"})
	}
	if !c.Service.BeginDrag(req.DealID) {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Deal not found on board"})
	}
	return ctx.JSON(c.Service.Board())
}

// CancelDrag godoc
// @Summary Cancel drag
// @Description Drop the lifted deal without moving it
// @Tags board
// @Produce json
// @Success 200 {object} board.Board
// @Router /api/board/drag [delete]
func (c *PipelineController) CancelDrag(ctx *fiber.Ctx) error {
	c.Service.CancelDrag()
	return ctx.JSON(c.Service.Board())
}

// MoveDeal godoc
// @Summary Move a deal
// @Description Move a deal to another stage. The board is updated before the write; a rejected write reloads it.
// @Tags board
// @Accept json
// @Produce json
// @Param body body moveRequest true "Deal and target stage"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/board/move [post]
func (c *PipelineController) MoveDeal(ctx *fiber.Ctx) error {
	var req moveRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.DealID) == "" || strings.TrimSpace(req.StageID) == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Deal ID and stage ID are required"})
	}

	moved, err := c.Service.Move(ctx.UserContext(), req.DealID, req.StageID)
	var persistErr *board.PersistError
	if errors.As(err, &persistErr) {
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Failed to move deal",
			"board": c.Service.Board(),
		})
	}
	if err != nil {
		c.Logger.Error("Move failed", zap.String("deal_id", req.DealID), zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to move deal"})
	}
	return ctx.JSON(fiber.Map{
		"moved": moved,
		"board": c.Service.Board(),
	})
}

// Reload godoc
// @Summary Reload board
// @Description Rebuild the board from the database
// @Tags board
// @Produce json
// @Success 200 {object} board.Board
// @Failure 503 {object} map[string]interface{}
// @Router /api/board/reload [post]
func (c *PipelineController) Reload(ctx *fiber.Ctx) error {
	if err := c.Service.Reload(ctx.UserContext()); err != nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to load pipeline data",
			"board": c.Service.Board(),
		})
	}
	return ctx.JSON(c.Service.Board())
}

// ExportBoard godoc
// @Summary Export board
// @Description Download the board as an Excel workbook
// @Tags board
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 500 {object} map[string]interface{}
// @Router /api/board/export [get]
func (c *PipelineController) ExportBoard(ctx *fiber.Ctx) error {
	data, filename, err := c.Service.ExportToExcel(ctx.UserContext())
	if err != nil {
		c.Logger.Error("Export failed", zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to export board"})
	}
	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}
