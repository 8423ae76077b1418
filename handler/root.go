package handler

import (
	"net/http"

	"go.uber.org/zap"
	"madrasah-backend/errs"
	"madrasah-backend/store"
)

const RootMessage = "Golbunia Nesaria Dakhil Madrasah server is running successfully!"

func root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(RootMessage))
}

func healthz(p store.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := p.Ping(r.Context()); err != nil {
			loggerFrom(r.Context()).Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": errs.ErrDatabase.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
