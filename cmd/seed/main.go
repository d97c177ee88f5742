package main

import (
	"context"
	"embed"
	"encoding/json"
	"time"

	"go-pipeline/internal/common/models"
	"go-pipeline/internal/config"
	"go-pipeline/internal/database"
	"go-pipeline/internal/features/audit"
	"go-pipeline/internal/features/deal"
	"go-pipeline/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

//go:embed data/*.json
var seedData embed.FS

type seedDeal struct {
	Stage string      `json:"stage"`
	Deal  models.Deal `json:"deal"`
}

// noBoard stands in for the board while seeding; there is no projection to refresh.
type noBoard struct{}

func (noBoard) Invalidate() {}

func readJSON(name string, v any) error {
	b, err := seedData.ReadFile("data/" + name)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Seed writes the pipeline stages and, on an empty board, a handful of sample deals.
func Seed(
	lc fx.Lifecycle,
	repo deal.DealRepository,
	auditService audit.AuditService,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				ctx = context.WithValue(ctx, models.ActorIDKey, "seed")

				logger.Info("Starting database seeding")

				var stages []models.Stage
				if err := readJSON("stages.json", &stages); err != nil {
					logger.Fatal("Failed to read stages.json", zap.Error(err))
				}
				n, err := repo.SeedStages(ctx, stages)
				if err != nil {
					logger.Fatal("Failed to seed stages", zap.Error(err))
				}
				if n == 0 {
					logger.Info("Stages exist, skipping")
				} else {
					logger.Info("Stages created", zap.Int("count", n))
				}

				existing, err := repo.ListDealsWithDetails(ctx)
				if err != nil {
					logger.Fatal("Failed to list deals", zap.Error(err))
				}
				if len(existing) > 0 {
					logger.Info("Deals exist, skipping sample data", zap.Int("count", len(existing)))
					return
				}

				saved, err := repo.ListStages(ctx)
				if err != nil {
					logger.Fatal("Failed to list stages", zap.Error(err))
				}
				stageIDs := make(map[string]string, len(saved))
				for _, s := range saved {
					stageIDs[s.Name] = s.ID
				}

				var deals []seedDeal
				if err := readJSON("deals.json", &deals); err != nil {
					logger.Fatal("Failed to read deals.json", zap.Error(err))
				}
				svc := deal.NewDealService(repo, auditService, noBoard{}, logger)
				for _, sd := range deals {
					stageID, ok := stageIDs[sd.Stage]
					if !ok {
						logger.Warn("Unknown stage in sample deal", zap.String("stage", sd.Stage))
						continue
					}
					sd.Deal.StageID = stageID
					created, err := svc.CreateDeal(ctx, sd.Deal)
					if err != nil {
						logger.Error("Failed to create deal", zap.String("client", sd.Deal.ClientName), zap.Error(err))
						continue
					}
					logger.Info("Deal created", zap.String("deal_id", created.DealCode), zap.String("stage", sd.Stage))
				}
				logger.Info("Seeding completed")
			}()
			return nil
		},
	})
}

func main() {
	fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewPostgres,
			database.NewMongoDatabase,
			audit.NewAuditRepository,
			audit.NewAuditService,
			deal.NewDealRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	).Run()
}
