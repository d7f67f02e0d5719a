package router

import (
	"net/http/httptest"
	"testing"
	"time"

	"lendpool-backend/internal/application/inventory"
	"lendpool-backend/internal/application/ledger"
	lendsvc "lendpool-backend/internal/application/lending"
	"lendpool-backend/internal/application/penalties"
	"lendpool-backend/internal/config"
	"lendpool-backend/internal/middleware"
	"lendpool-backend/internal/pkg/clock"
	"lendpool-backend/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, env string) (*fiber.App, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := testdb.Open(t)
	clk := clock.NewManual(time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC))
	policy, err := penalties.NewPolicy("days", 10, "", 7)
	require.NoError(t, err)
	svc := lendsvc.NewService(db, inventory.NewAllocator(), ledger.NewService(db, clk), policy, clk)

	cfg := &config.Config{Env: env, CORSSuffix: ".lab.example.edu"}
	return CreateApp(cfg, svc, db, rdb), mr
}

func TestCreateApp_RoutesAndMiddleware(t *testing.T) {
	app, mr := newApp(t, "development")

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	_, err = uuid.Parse(resp.Header.Get("X-Trace-Id"))
	assert.NoError(t, err)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/members/"+uuid.NewString()+"/balance", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	// no ADMIN_KEY_HASH configured: admin routes stay closed
	req := httptest.NewRequest("POST", "/api/v1/members", nil)
	req.Header.Set("X-Admin-Key", "anything")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/no/such/route", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	total, err := mr.Get(middleware.KeyReqTotal)
	require.NoError(t, err)
	assert.Equal(t, "3", total)
}

func TestCreateApp_CORS(t *testing.T) {
	app, _ := newApp(t, "production")

	req := httptest.NewRequest("OPTIONS", "/api/v1/borrowings", nil)
	req.Header.Set("Origin", "https://desk.lab.example.edu")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, "https://desk.lab.example.edu", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}
