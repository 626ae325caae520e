package service

import (
	"log/slog"

	redisx "github.com/okonomi/yoyaku-go/internal/redis"
	postgres "github.com/okonomi/yoyaku-go/internal/repository/postgres"
	redis "github.com/okonomi/yoyaku-go/internal/repository/redis"
	"github.com/okonomi/yoyaku-go/internal/service/calendar"
	"github.com/okonomi/yoyaku-go/internal/service/external"
	"github.com/okonomi/yoyaku-go/internal/service/lifecycle"
	"github.com/okonomi/yoyaku-go/internal/sideeffect"
)

type Services struct {
	Lifecycle *lifecycle.Service
	External  *external.Service
	Calendar  *calendar.Service
}

type Config struct {
	Calendar calendar.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.CalendarPubSub,
	limiter *redis.SlidingWindowLimiter,
	dispatcher *sideeffect.Dispatcher,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Lifecycle: lifecycle.New(store, cache, pubsub, dispatcher, logger),
		External:  external.New(store, cache, pubsub, limiter, logger),
		Calendar:  calendar.New(store, cache, cfg.Calendar),
	}
}
