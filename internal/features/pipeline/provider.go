package pipeline

import (
	"context"

	"go-pipeline/internal/board"
	"go-pipeline/internal/config"
	"go-pipeline/internal/database"
	cron_feature "go-pipeline/internal/features/cron"
	"go-pipeline/internal/features/deal"
	"go-pipeline/internal/features/system"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewSynchronizer builds the process-wide board projection over the deal store.
func NewSynchronizer(store *deal.BoardStore, hub *system.Hub, cfg *config.Config, logger *zap.Logger) *board.Synchronizer {
	return board.NewSynchronizer(store, board.Options{
		Notifier: hub,
		Logger:   logger,
		Debounce: cfg.InvalidateDebounce,
	})
}

// StartBoard loads the projection, connects it to the websocket hub and feeds it
// change notifications from Postgres. A failed initial load or an unavailable
// change feed is logged; the scheduled resync picks up from there.
func StartBoard(lc fx.Lifecycle, s *board.Synchronizer, hub *system.Hub, cfg *config.Config, logger *zap.Logger) {
	var (
		feed        *database.ChangeFeed
		unsubscribe func()
	)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			unsubscribe = s.Subscribe(hub)
			if err := s.Load(ctx); err != nil {
				logger.Warn("Initial board load failed", zap.Error(err))
			}

			f, err := database.NewChangeFeed(cfg.DatabaseURL, logger, func(table string) {
				s.Invalidate()
			})
			if err != nil {
				logger.Warn("Change feed unavailable", zap.Error(err))
				return nil
			}
			feed = f
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if feed != nil {
				_ = feed.Close()
			}
			if unsubscribe != nil {
				unsubscribe()
			}
			s.Close()
			return nil
		},
	})
}

// RegisterResyncJob schedules the periodic full reload.
func RegisterResyncJob(cronService cron_feature.CronService, s *board.Synchronizer, cfg *config.Config) error {
	return cronService.RegisterJob(cron_feature.CronJob{
		Name:        cron_feature.ResyncJobName,
		Description: "Rebuild the board from Postgres",
		Schedule:    cfg.ResyncSchedule,
		Active:      true,
	}, s.Load)
}
