package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/lilzahs/gimme-idea/api/config"
)

func GetHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetReadyz reports ready once the global PostgreSQL pool answers a ping.
func GetReadyz(w http.ResponseWriter, r *http.Request) {
	if config.PgPool == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "postgres not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := config.PgPool.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "postgres unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
