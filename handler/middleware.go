package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"madrasah-backend/errs"
	"madrasah-backend/log"
)

const (
	requestIDHeader = "X-Request-ID"
	// Longer client ids are replaced with a generated one.
	maxRequestIDLength = 128
)

// withMiddleware wraps the router, outermost first: request id, access log,
// panic recovery, CORS.
func withMiddleware(h http.Handler) http.Handler {
	h = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(h)
	h = recovery(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, accessLog)
	return requestID(h)
}

// recovery turns a panic into a 500 carrying the usual JSON error body.
func recovery(next http.Handler) http.Handler {
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(log.Logger)),
		handlers.PrintRecoveryStack(false),
	)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recovered.ServeHTTP(&panicWriter{ResponseWriter: w}, r)
	})
}

// panicWriter fills in the body of the bare 500 RecoveryHandler writes.
// Every other response sets its Content-Type before the status.
type panicWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (p *panicWriter) WriteHeader(status int) {
	if p.wroteHeader {
		return
	}
	p.wroteHeader = true
	if status == http.StatusInternalServerError && p.Header().Get("Content-Type") == "" {
		writeError(p.ResponseWriter, errs.ErrInternal)
		return
	}
	p.ResponseWriter.WriteHeader(status)
}

func (p *panicWriter) Write(b []byte) (int, error) {
	p.wroteHeader = true
	return p.ResponseWriter.Write(b)
}

// requestID tags the request with an id, echoing the client's one if given,
// and stores a logger carrying it in the request context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.New().String()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)

		ctx := withLogger(r.Context(), log.Logger.With(zap.String("requestID", id)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(_ io.Writer, p handlers.LogFormatterParams) {
	loggerFrom(p.Request.Context()).Info("request",
		zap.String("method", p.Request.Method),
		zap.String("path", p.URL.Path),
		zap.Int("status", p.StatusCode),
		zap.Int("size", p.Size),
		zap.Duration("latency", time.Since(p.TimeStamp)),
	)
}
