package main

import (
	"context"
	"fmt"
	"log"

	"go-pipeline/internal/board"
	common_api "go-pipeline/internal/common/api"
	"go-pipeline/internal/config"
	"go-pipeline/internal/database"
	"go-pipeline/internal/features/activity"
	"go-pipeline/internal/features/audit"
	cron_feature "go-pipeline/internal/features/cron"
	"go-pipeline/internal/features/deal"
	"go-pipeline/internal/features/pipeline"
	"go-pipeline/internal/features/settings"
	"go-pipeline/internal/features/system"
	"go-pipeline/internal/logger"
	"go-pipeline/internal/middleware"
	"go-pipeline/pkg/utils"

	_ "go-pipeline/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config) *fiber.App {
	utils.SetSecret(cfg.JWTSecret)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, logger *zap.Logger) {
	logger.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		logger.Debug("Setting up route", zap.String("type", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				logger.Info("Server listening", zap.String("addr", port))
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// StartScheduler runs the cron scheduler for the lifetime of the app.
func StartScheduler(lc fx.Lifecycle, cronService cron_feature.CronService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return cronService.InitializeScheduler(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return cronService.StopScheduler()
		},
	})
}

// @title           go-pipeline API
// @version         1.0
// @description     Deal pipeline board: stages, deals, drag and drop moves and integration activity.

// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Databases
			database.NewPostgres,
			database.NewMongoDatabase,

			// Initialize Repository
			audit.NewAuditRepository,
			deal.NewDealRepository,
			activity.NewActivityRepository,
			settings.NewSettingsRepository,
			cron_feature.NewCronRepository,

			// Board
			system.NewHub,
			deal.NewBoardStore,
			pipeline.NewSynchronizer,
			activity.NewRegistry,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(s *board.Synchronizer) deal.Invalidator { return s },

			audit.NewAuditService,
			deal.NewDealService,
			activity.NewActivityService,
			settings.NewSettingsService,
			cron_feature.NewCronService,
			pipeline.NewPipelineService,

			// Initialize Controller
			audit.NewAuditController,
			deal.NewDealController,
			activity.NewActivityController,
			settings.NewSettingsController,
			cron_feature.NewCronController,
			pipeline.NewPipelineController,
			system.NewWebSocketController,
			system.NewDebugController,

			// Initialize API Routes
			AsRoute(audit.NewAuditApi),
			AsRoute(deal.NewDealApi),
			AsRoute(activity.NewActivityApi),
			AsRoute(settings.NewSettingsApi),
			AsRoute(cron_feature.NewCronApi),
			AsRoute(pipeline.NewPipelineApi),
			AsRoute(system.NewWebSocketApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			pipeline.StartBoard,
			pipeline.RegisterResyncJob,
			StartScheduler,
			StartServer,
		),
	)

	app.Run()
}
