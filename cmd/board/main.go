package main

import (
	"context"
	"os"

	"go-pipeline/internal/board"
	"go-pipeline/internal/config"
	"go-pipeline/internal/database"
	"go-pipeline/internal/features/audit"
	"go-pipeline/internal/features/deal"
	"go-pipeline/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// newFileLogger writes to BOARD_LOG_FILE so log lines never land on the board.
func newFileLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	path := os.Getenv("BOARD_LOG_FILE")
	if path == "" {
		path = "board.log"
	}
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.OutputPaths = []string{path}
	zapConfig.ErrorOutputPaths = []string{path}
	if cfg.IsProduction() {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		_ = logger.Sync()
		return nil
	}})
	return logger, nil
}

func newSynchronizer(store *deal.BoardStore, bridge *tui.Bridge, cfg *config.Config, logger *zap.Logger) *board.Synchronizer {
	return board.NewSynchronizer(store, board.Options{
		Notifier: bridge,
		Logger:   logger,
		Debounce: cfg.InvalidateDebounce,
	})
}

// Run shows the board until the user quits, then stops the app.
func Run(
	lc fx.Lifecycle,
	s *board.Synchronizer,
	bridge *tui.Bridge,
	cfg *config.Config,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	var feed *database.ChangeFeed
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Subscribe(bridge)

			f, err := database.NewChangeFeed(cfg.DatabaseURL, logger, func(string) { s.Invalidate() })
			if err != nil {
				logger.Warn("Change feed unavailable, press r to reload", zap.Error(err))
			} else {
				feed = f
			}

			go func() {
				p := tea.NewProgram(tui.NewModel(s, bridge), tea.WithAltScreen())
				if _, err := p.Run(); err != nil {
					logger.Error("Board exited with error", zap.Error(err))
				}
				if err := shutdowner.Shutdown(); err != nil {
					logger.Error("Failed to shutdown", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if feed != nil {
				_ = feed.Close()
			}
			s.Close()
			return nil
		},
	})
}

func main() {
	fx.New(
		fx.Provide(
			config.LoadConfig,
			newFileLogger,
			database.NewPostgres,
			database.NewMongoDatabase,
			audit.NewAuditRepository,
			audit.NewAuditService,
			deal.NewDealRepository,
			deal.NewBoardStore,
			tui.NewBridge,
			newSynchronizer,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Run),
	).Run()
}
