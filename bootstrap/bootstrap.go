package bootstrap

import (
	"fmt"
	"time"

	"lendpool-backend/internal/application/inventory"
	"lendpool-backend/internal/application/ledger"
	"lendpool-backend/internal/application/lending"
	"lendpool-backend/internal/application/notifications"
	"lendpool-backend/internal/application/penalties"
	"lendpool-backend/internal/config"
	"lendpool-backend/internal/infrastructure/database"
	"lendpool-backend/internal/infrastructure/redislock"
	"lendpool-backend/internal/interfaces/router"
	"lendpool-backend/internal/jobs"
	"lendpool-backend/internal/pkg/clock"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// jobLockExpiry outlives the longest job run. The lock is never extended,
// so a crashed holder frees it after this.
const jobLockExpiry = 10 * time.Minute

// Container holds the wired services shared by the API and the scheduler.
type Container struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Lending   *lending.Service
	Penalties *penalties.Service
	Relay     *notifications.Relay
	Jobs      *jobs.JobRunner
}

// Build opens the database and, when REDIS_URL is set, Redis, then wires
// every service. Without Redis the relay logs events and jobs run unlocked.
func Build(cfg *config.Config) (*Container, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
	}
	return Wire(cfg, db, rdb, clock.System{})
}

// Wire assembles services over existing connections.
func Wire(cfg *config.Config, db *gorm.DB, rdb *redis.Client, clk clock.Clock) (*Container, error) {
	policy, err := penalties.NewPolicy(cfg.Penalty.Mode, cfg.Penalty.Rate, cfg.Penalty.Timezone, cfg.Penalty.RefundWindowDays)
	if err != nil {
		return nil, err
	}
	led := ledger.NewService(db, clk)

	lend := lending.NewService(db, inventory.NewAllocator(), led, policy, clk)
	lend.MaxRetries = cfg.TxMaxRetries

	pen := penalties.NewService(db, led, policy, clk)
	if cfg.OverdueNoticeTTL > 0 {
		pen.MarkerTTL = cfg.OverdueNoticeTTL
	}

	var sink notifications.Sink = notifications.LogSink{}
	var locker jobs.Locker = jobs.NoopLocker{}
	if rdb != nil {
		pen.Markers = penalties.NewRedisMarker(rdb)
		sink = notifications.NewRedisSink(rdb, notifications.DefaultChannel)
		locker = redislock.New(rdb, jobLockExpiry)
	} else {
		log.Warn().Msg("REDIS_URL not set: events go to the log and jobs run without a distributed lock")
	}
	relay := notifications.NewRelay(db, sink, clk)

	return &Container{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Lending:   lend,
		Penalties: pen,
		Relay:     relay,
		Jobs:      jobs.NewJobRunner(pen, relay, locker, cfg.JobTimeout),
	}, nil
}

// App builds the HTTP app over the container's services.
func (c *Container) App() *fiber.App {
	return router.CreateApp(c.Config, c.Lending, c.DB, c.Redis)
}

// Close releases the database pool and Redis client.
func (c *Container) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// New creates the Fiber app for serverless entry points (api/index.go imports
// this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	return c.App(), nil
}
