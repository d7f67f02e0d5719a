package health

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CollectResult is the /health/json body.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Outbox       OutboxInfo           `json:"outbox"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapMB        int    `json:"heapMb"`
	Goroutines    int    `json:"goroutines"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int    `json:"totalRequests"`
	FailedCount     int    `json:"failedCount"`
	SuccessRate     string `json:"successRate"`
	AvgResponseTime string `json:"avgResponseTime"`
}

// OutboxInfo reports relay backlog; a growing pending count means the
// scheduler is not relaying.
type OutboxInfo struct {
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

var processStart = time.Now()

// CollectHealth pings the database and Redis and reads request counters and
// outbox backlog. Either dependency may be nil. Status is "ok" only when the
// database answers and Redis, if configured, does too.
func CollectHealth(ctx context.Context, rdb *redis.Client, db *gorm.DB) CollectResult {
	result := CollectResult{
		Dependencies: make(map[string]DepStatus),
		Traffic:      TrafficInfo{SuccessRate: "100", AvgResponseTime: "0"},
	}

	dbStatus := DepStatus{Status: "disconnected"}
	if db != nil {
		dbStatus = ping(func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
		if dbStatus.Status == "connected" {
			db.WithContext(ctx).Model(&domain.OutboxEvent{}).Where("status = ?", domain.OutboxPending).Count(&result.Outbox.Pending)
			db.WithContext(ctx).Model(&domain.OutboxEvent{}).Where("status = ?", domain.OutboxFailed).Count(&result.Outbox.Failed)
		}
	}
	result.Dependencies["database"] = dbStatus

	redisStatus := DepStatus{Status: "disabled"}
	if rdb != nil {
		redisStatus = ping(func() error { return rdb.Ping(ctx).Err() })
		if redisStatus.Status == "connected" {
			result.Traffic = readTraffic(ctx, rdb)
		}
	}
	result.Dependencies["redis"] = redisStatus

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	result.Runtime = RuntimeInfo{
		UptimeSeconds: int64(time.Since(processStart).Seconds()),
		HeapMB:        int(m.HeapInuse / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
	}

	result.Status = "issue"
	if dbStatus.Status == "connected" && redisStatus.Status != "error" {
		result.Status = "ok"
	}
	return result
}

func ping(fn func() error) DepStatus {
	start := time.Now()
	if err := fn(); err != nil {
		return DepStatus{Status: "error"}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: "connected", PingMs: &ms}
}

func readTraffic(ctx context.Context, rdb *redis.Client) TrafficInfo {
	stats := TrafficInfo{SuccessRate: "100", AvgResponseTime: "0"}
	vals, err := rdb.MGet(ctx, middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount).Result()
	if err != nil {
		return stats
	}
	str := func(i int) string {
		s, _ := vals[i].(string)
		return s
	}
	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	if stats.TotalRequests > 0 {
		ok := stats.TotalRequests - stats.FailedCount
		stats.SuccessRate = strconv.FormatFloat(float64(ok)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	count, _ := strconv.Atoi(str(3))
	if count > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(count), 'f', 2, 64)
	}
	return stats
}
