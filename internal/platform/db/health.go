package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// HealthReport is the payload of the database readiness endpoint. Beyond the
// raw ping it carries the schema version and tenant count, so a misapplied
// migration or an unseeded database shows up as degraded instead of healthy.
type HealthReport struct {
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	SchemaVersion int       `json:"schema_version"`
	Tenants       int64     `json:"tenants"`
	Pool          PoolStats `json:"pool"`
}

// PoolStats is a snapshot of the pgx connection pool.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func poolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// CheckHealth pings the pool and gathers the report. The counts are best
// effort: a failed ping short-circuits, a failed count reports degraded.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) *HealthReport {
	report := &HealthReport{Status: "healthy", Pool: poolStats(pool)}

	if err := pool.Ping(ctx); err != nil {
		report.Status = "unhealthy"
		report.Error = err.Error()
		return report
	}

	if err := pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM _migrations`).Scan(&report.SchemaVersion); err != nil {
		report.Status = "degraded"
		report.Error = err.Error()
		return report
	}
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tenants`).Scan(&report.Tenants); err != nil {
		report.Status = "degraded"
		report.Error = err.Error()
	}
	return report
}

// HealthHandler serves the database readiness endpoint.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		report := CheckHealth(ctx, pool)
		code := http.StatusOK
		if report.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, report)
	}
}
