package deal

import (
	"go-pipeline/internal/common/api"
	"go-pipeline/internal/config"
	"go-pipeline/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DealApi struct {
	controller *DealController
	config     *config.Config
}

func NewDealApi(controller *DealController, config *config.Config) api.Route {
	return &DealApi{
		controller: controller,
		config:     config,
	}
}

func (h *DealApi) Setup(app *fiber.App) {
	auth := middleware.AuthMiddleware(h.config.SkipAuth)

	app.Get("/api/stages", auth, h.controller.ListStages)

	deals := app.Group("/api/deals", auth)
	deals.Get("/", h.controller.ListDeals)
	deals.Post("/", h.controller.CreateDeal)
	deals.Get("/:id", h.controller.GetDeal)
	deals.Put("/:id", h.controller.UpdateDeal)
	deals.Delete("/:id", h.controller.DeleteDeal)
}
