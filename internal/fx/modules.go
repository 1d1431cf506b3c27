package fx

import (
	"github.com/Krutik08064/CricSaga-Bot/internal/anticheat"
	"github.com/Krutik08064/CricSaga-Bot/internal/audit"
	"github.com/Krutik08064/CricSaga-Bot/internal/challenge"
	"github.com/Krutik08064/CricSaga-Bot/internal/config"
	"github.com/Krutik08064/CricSaga-Bot/internal/database"
	"github.com/Krutik08064/CricSaga-Bot/internal/leaderboard"
	"github.com/Krutik08064/CricSaga-Bot/internal/logger"
	"github.com/Krutik08064/CricSaga-Bot/internal/matchmaking"
	"github.com/Krutik08064/CricSaga-Bot/internal/rating"
	"github.com/Krutik08064/CricSaga-Bot/internal/repository"
	"github.com/Krutik08064/CricSaga-Bot/internal/service"
	"github.com/Krutik08064/CricSaga-Bot/internal/stats"

	"go.uber.org/fx"
)

// ProvideMultiplierPolicy wires the current delta-scaling policy. Trust and
// pattern multipliers are collapsed to the identity; swapping the policy
// back in is a wiring change here, not an engine change.
func ProvideMultiplierPolicy() rating.MultiplierPolicy {
	return rating.IdentityPolicy{}
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(database.NewRedis),
	// repos
	fx.Provide(repository.NewProfileRepository),
	fx.Provide(repository.NewQueueRepository),
	fx.Provide(repository.NewChallengeRepository),
	fx.Provide(repository.NewPatternRepository),
	fx.Provide(repository.NewMatchRepository),
	// engine
	fx.Provide(ProvideMultiplierPolicy),
	fx.Provide(anticheat.NewMonitor),
	fx.Provide(matchmaking.NewQueue),
	fx.Provide(challenge.NewManager),
	fx.Provide(stats.NewAggregator),
	fx.Provide(leaderboard.NewService),
	fx.Provide(audit.New),
	// svc
	fx.Provide(service.NewRankedService),
)
