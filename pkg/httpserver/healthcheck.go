package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Check is a named readiness check, such as a database ping.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// HealthReport is the body written by HealthCheckHandler.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health statuses.
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
)

// HealthCheckHandler serves liveness and readiness in one endpoint. With no
// checks it always answers 200. Otherwise every check runs concurrently
// under timeout and any failure turns the answer into 503 with the failing
// check's error in the report.
func HealthCheckHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		report := HealthReport{Status: StatusOK}
		if len(checks) > 0 {
			report.Checks = make(map[string]string, len(checks))
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, c := range checks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result := StatusOK
				if err := c.Fn(ctx); err != nil {
					log.LogAttrs(ctx, slog.LevelError, "readiness check failed",
						logger.Component(c.Name),
						logger.Error(err),
					)
					result = err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				report.Checks[c.Name] = result
				if result != StatusOK {
					report.Status = StatusUnavailable
				}
			}()
		}
		wg.Wait()

		status := http.StatusOK
		if report.Status != StatusOK {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}
