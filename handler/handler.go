package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"madrasah-backend/entity"
	"madrasah-backend/errs"
	"madrasah-backend/events"
	"madrasah-backend/log"
)

const maxBodyBytes = 1 << 20

// endpoint is one route's behaviour: it gets the request and returns either
// the value to encode as JSON or one of the errs sentinels.
type endpoint func(r *http.Request) (interface{}, error)

type loggerKey struct{}

func withLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return log.Logger
}

// serve adapts an endpoint to net/http, bounding it by timeout when one is set.
func serve(timeout time.Duration, ep endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		res, err := ep(r)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Logger.Debug("writing response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), map[string]string{"error": errs.Public(err).Error()})
}

// dbError passes the store's typed outcomes through and turns everything
// else into ErrDatabase after logging it.
func dbError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return errs.ErrNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		return errs.ErrAlreadyExists
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		loggerFrom(ctx).Warn("database call abandoned", zap.Error(err))
		return errs.ErrDatabase
	}
	loggerFrom(ctx).Error("database error", zap.Error(err))
	return errs.ErrDatabase
}

func announce(ctx context.Context, p events.Publisher, a entity.Activity) {
	if err := p.Publish(ctx, a); err != nil {
		loggerFrom(ctx).Warn("publishing activity failed",
			zap.Error(err), zap.String("key", a.RoutingKey()), zap.String("documentID", a.DocumentID.Hex()))
	}
}

// readDocument decodes a JSON object body. A client supplied _id is dropped:
// identifiers are always assigned by the store.
func readDocument(r *http.Request) (entity.Document, error) {
	var doc entity.Document
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, errs.ErrInvalidBody
	}
	delete(doc, entity.IDField)
	return doc, nil
}

func withID(fn func(ctx context.Context, id primitive.ObjectID) (interface{}, error)) endpoint {
	return func(r *http.Request) (interface{}, error) {
		id, err := entity.ParseID(mux.Vars(r)["id"])
		if err != nil {
			return nil, err
		}
		return fn(r.Context(), id)
	}
}

func withEmail(fn func(ctx context.Context, email string) (interface{}, error)) endpoint {
	return func(r *http.Request) (interface{}, error) {
		return fn(r.Context(), mux.Vars(r)["email"])
	}
}

func withBody(fn func(ctx context.Context, doc entity.Document) (interface{}, error)) endpoint {
	return func(r *http.Request) (interface{}, error) {
		doc, err := readDocument(r)
		if err != nil {
			return nil, err
		}
		return fn(r.Context(), doc)
	}
}

func withIDAndBody(fn func(ctx context.Context, id primitive.ObjectID, doc entity.Document) (interface{}, error)) endpoint {
	return func(r *http.Request) (interface{}, error) {
		id, err := entity.ParseID(mux.Vars(r)["id"])
		if err != nil {
			return nil, err
		}
		doc, err := readDocument(r)
		if err != nil {
			return nil, err
		}
		return fn(r.Context(), id, doc)
	}
}
