package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks storage availability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the service can reach its database
// 200 — сервис доступен;
// 503 — база данных недоступна.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
