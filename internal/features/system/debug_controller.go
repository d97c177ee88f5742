package system

import (
	"go-pipeline/internal/middleware"
	"go-pipeline/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type DebugController struct {
	Hub *Hub
}

func NewDebugController(hub *Hub) *DebugController {
	return &DebugController{Hub: hub}
}

// GetCurrentUser godoc
// @Summary      Get current user info
// @Description  Get the actor resolved from the JWT
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/debug/me [get]
func (c *DebugController) GetCurrentUser(ctx *fiber.Ctx) error {
	resp := fiber.Map{
		"user_id":           middleware.ActorID(ctx),
		"websocket_clients": c.Hub.Count(),
		"message":           "This is your current JWT token data",
	}
	if claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims); ok && claims.ExpiresAt != nil {
		resp["expires_at"] = claims.ExpiresAt.Time
	}
	return ctx.JSON(resp)
}

// GetHubStatus godoc
// @Summary      Get websocket fan-out status
// @Description  Connected clients and the newest board version they were sent
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/debug/hub [get]
func (c *DebugController) GetHubStatus(ctx *fiber.Ctx) error {
	version, seen := c.Hub.LastVersion()
	resp := fiber.Map{
		"websocket_clients": c.Hub.Count(),
		"board_published":   seen,
	}
	if seen {
		resp["board_version"] = version
	}
	return ctx.JSON(resp)
}
