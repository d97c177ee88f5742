package pipeline

import (
	"go-pipeline/internal/common/api"
	"go-pipeline/internal/config"
	"go-pipeline/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type PipelineApi struct {
	controller *PipelineController
	config     *config.Config
}

func NewPipelineApi(controller *PipelineController, config *config.Config) api.Route {
	return &PipelineApi{
		controller: controller,
		config:     config,
	}
}

func (h *PipelineApi) Setup(app *fiber.App) {
	b := app.Group("/api/board", middleware.AuthMiddleware(h.config.SkipAuth))

	b.Get("/", h.controller.GetBoard)
	b.Post("/drag", h.controller.BeginDrag)
	b.Delete("/drag", h.controller.CancelDrag)
	b.Post("/move", h.controller.MoveDeal)
	b.Post("/reload", h.controller.Reload)
	b.Get("/export", h.controller.ExportBoard)
}
