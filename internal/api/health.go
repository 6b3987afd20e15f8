package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pinger is anything whose connectivity the health check can verify.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis
// connectivity concurrently. A nil redis means the cache is not configured;
// it is reported as disabled and does not degrade the status.
func HealthHandlerFunc(db Pinger, redis Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "ok"
		redisStatus := "disabled"

		var g errgroup.Group
		g.Go(func() error {
			if err := db.Ping(ctx); err != nil {
				log.Error("health check: db ping failed", "err", err)
				dbStatus = "error"
			}
			return nil
		})
		if redis != nil {
			redisStatus = "ok"
			g.Go(func() error {
				if err := redis.Ping(ctx); err != nil {
					log.Error("health check: redis ping failed", "err", err)
					redisStatus = "error"
				}
				return nil
			})
		}
		_ = g.Wait()

		status, overall := http.StatusOK, "ok"
		if dbStatus == "error" || redisStatus == "error" {
			status, overall = http.StatusServiceUnavailable, "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
