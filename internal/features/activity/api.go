package activity

import (
	"go-pipeline/internal/common/api"
	"go-pipeline/internal/config"
	"go-pipeline/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ActivityApi struct {
	ActivityController *ActivityController
	Config             *config.Config
}

func NewActivityApi(activityController *ActivityController, config *config.Config) api.Route {
	return &ActivityApi{
		ActivityController: activityController,
		Config:             config,
	}
}

func (api *ActivityApi) Setup(app *fiber.App) {
	// Third parties call these directly, so they carry no auth.
	integrations := app.Group("/api/integrations")
	integrations.Get("/:type", api.ActivityController.ListIntegrationActivities)
	integrations.Post("/:type", api.ActivityController.ReceiveWebhook)

	auth := middleware.AuthMiddleware(api.Config.SkipAuth)
	app.Post("/api/deals/:id/notes", auth, api.ActivityController.AddNote)
	app.Get("/api/deals/:id/activities", auth, api.ActivityController.Timeline)
}
