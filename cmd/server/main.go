package main

import (
	"context"
	"database/sql"

	"github.com/Krutik08064/CricSaga-Bot/internal/challenge"
	fxmodules "github.com/Krutik08064/CricSaga-Bot/internal/fx"
	"github.com/Krutik08064/CricSaga-Bot/internal/leaderboard"
	"github.com/Krutik08064/CricSaga-Bot/internal/matchmaking"
	"github.com/Krutik08064/CricSaga-Bot/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runEngine),
	).Run()
}

func runEngine(
	lc fx.Lifecycle,
	svc *service.RankedService,
	queue *matchmaking.Queue,
	challenges *challenge.Manager,
	board *leaderboard.Service,
	db *sql.DB,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := board.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("leaderboard cache refresh failed")
			}
			queue.Start(svc.HandleQueuePair)
			challenges.Start()
			logger.Info().Msg("ranked engine running")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down ranked engine")
			queue.Stop()
			challenges.Stop()

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("ranked engine stopped gracefully")
			return nil
		},
	})
}
