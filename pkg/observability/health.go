package observability

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the response body of the health endpoint
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// HealthHandler returns a handler that reports process and database health.
// A failed database ping yields 503 with status "degraded".
func HealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:   "ok",
			Database: "ok",
			Time:     time.Now().UTC().Format(time.RFC3339),
		}

		code := http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status.Status = "degraded"
			status.Database = err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status) //nolint:errcheck
	}
}
