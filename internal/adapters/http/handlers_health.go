package web

import (
	"context"
	"net/http"
	"time"
)

// readyCheckTimeout bounds the database ping behind /readyz.
const readyCheckTimeout = 2 * time.Second

// perfWindow is how far back /readyz aggregates timing entries.
const perfWindow = 15 * time.Minute

// handleHealthz handles GET /healthz
func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles GET /readyz
// Answers 503 when the database does not respond; otherwise reports the email
// backlog and recent timings.
func handleReadyz(w http.ResponseWriter, r *http.Request) {
	if stores != nil && stores.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := stores.DB.PingContext(ctx)
		cancel()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  "database: " + err.Error(),
			})
			return
		}
	}

	body := map[string]any{"status": "ok"}
	if stores != nil && stores.OutboxStore != nil {
		if counts, err := stores.OutboxStore.CountByStatus(r.Context()); err == nil {
			body["outbox"] = counts
		}
	}
	if perfCollector != nil {
		body["perf"] = perfCollector.Snapshot(timeNow().Add(-perfWindow), 5)
	}
	writeJSON(w, http.StatusOK, body)
}
