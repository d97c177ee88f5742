package cron_feature

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type CronController struct {
	Service CronService
}

func NewCronController(service CronService) *CronController {
	return &CronController{
		Service: service,
	}
}

// ListCronJobs godoc
// @Summary List cron jobs
// @Description List the registered scheduled jobs with their next run
// @Tags cron
// @Produce json
// @Success 200 {array} CronJob
// @Router /api/cron-jobs [get]
func (c *CronController) ListCronJobs(ctx *fiber.Ctx) error {
	return ctx.JSON(c.Service.ListCronJobs())
}

// ExecuteCronJob godoc
// @Summary Execute cron job
// @Description Run a job immediately
// @Tags cron
// @Produce json
// @Param name path string true "Cron Job name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/cron-jobs/{name}/execute [post]
func (c *CronController) ExecuteCronJob(ctx *fiber.Ctx) error {
	err := c.Service.ExecuteCronJob(ctx.UserContext(), ctx.Params("name"))
	if errors.Is(err, ErrJobNotFound) {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Cron job not found"})
	}
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Cron job executed successfully"})
}

// GetCronJobLogs godoc
// @Summary Get cron job logs
// @Description Recent executions of a job, newest first
// @Tags cron
// @Produce json
// @Param name path string true "Cron Job name"
// @Param limit query int false "Limit number of logs" default(20)
// @Success 200 {array} CronJobLog
// @Failure 404 {object} map[string]interface{}
// @Router /api/cron-jobs/{name}/logs [get]
func (c *CronController) GetCronJobLogs(ctx *fiber.Ctx) error {
	limit, err := strconv.Atoi(ctx.Query("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	logs, err := c.Service.GetCronJobLogs(ctx.Params("name"), limit)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Cron job not found"})
	}
	return ctx.JSON(logs)
}
