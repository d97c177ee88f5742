package system

import (
	"context"
	"time"

	"go-pipeline/internal/common/api"
	"go-pipeline/internal/database"

	"github.com/gofiber/fiber/v2"
)

type HealthApi struct {
	pg *database.PostgresDB
}

func NewHealthApi(pg *database.PostgresDB) api.Route {
	return &HealthApi{pg: pg}
}

func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Check if the server is up and Postgres answers
// @Tags         health
// @Produce      plain
// @Success      200  {string}  string  "OK"
// @Failure      503  {string}  string  "Database unavailable"
// @Router       /health [get]
func (h *HealthApi) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.pg.DB.PingContext(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("Database unavailable")
	}
	return c.SendString("OK")
}
