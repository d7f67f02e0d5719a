package router

import (
	"net/http"

	lendsvc "lendpool-backend/internal/application/lending"
	"lendpool-backend/internal/config"
	healthhandler "lendpool-backend/internal/interfaces/handlers/health"
	lendhandler "lendpool-backend/internal/interfaces/handlers/lending"
	"lendpool-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app around an already wired lending service.
// rdb may be nil; request stats and the Redis health check are then skipped.
func CreateApp(cfg *config.Config, svc *lendsvc.Service, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.CORSSuffix,
		AllowLocalhost: !cfg.IsProduction(),
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Rdb: rdb, DB: db}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/live", hh.Live)

	lh := &lendhandler.Handlers{Service: svc}
	lh.Routes(app.Group("/api/v1"), middleware.RequireAdminKey(cfg.AdminKeyHash))

	return app
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
