package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"madrasah-backend/entity"
	"madrasah-backend/errs"
	"madrasah-backend/events"
	"madrasah-backend/store"
)

const ServiceName = "madrasah-backend"

type Options struct {
	Collections store.Collections
	Pinger      store.Pinger
	Events      events.Publisher

	// RequestTimeout bounds the storage work of one request; zero disables it.
	RequestTimeout time.Duration
	// LegacyRoutes also serves the paths of the first revision of the site
	// (/getAllAdmins, /deleteUser/{id}, ...).
	LegacyRoutes bool
	Tracing      bool
}

// NewRouter builds the complete HTTP surface, middleware included.
func NewRouter(o Options) http.Handler {
	if o.Events == nil {
		o.Events = events.Nop{}
	}

	users := NewUserHandler(o.Collections.Users, o.Events)
	boards := []*boardHandler{
		NewBoardHandler(store.EventsCollection, o.Collections.Events, o.Events),
		NewBoardHandler(store.NoticesCollection, o.Collections.Notices, o.Events),
	}

	r := mux.NewRouter()
	if o.Tracing {
		r.Use(otelmux.Middleware(ServiceName))
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, errs.ErrNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, errs.ErrMethodNotAllowed)
	})

	s := func(ep endpoint) http.HandlerFunc { return serve(o.RequestTimeout, ep) }

	r.HandleFunc("/", root).Methods(http.MethodGet)
	if o.Pinger != nil {
		r.HandleFunc("/healthz", healthz(o.Pinger)).Methods(http.MethodGet)
	}

	registerUsers(r, s, users)
	for _, b := range boards {
		registerBoard(r, s, b)
	}
	if o.LegacyRoutes {
		registerLegacy(r, s, users, boards)
	}

	return withMiddleware(r)
}

func registerUsers(r *mux.Router, s func(endpoint) http.HandlerFunc, h *userHandler) {
	r.HandleFunc("/users", s(func(req *http.Request) (interface{}, error) {
		var role entity.Role
		if q := req.URL.Query().Get("role"); q != "" {
			var err error
			if role, err = entity.ParseRole(q); err != nil {
				return nil, err
			}
		}
		return h.List(req.Context(), role)
	})).Methods(http.MethodGet)

	// Static segments first so they win over /users/{id}.
	for _, role := range entity.Roles {
		role := role
		r.HandleFunc("/users/"+role.Plural(), s(listRole(h, role))).Methods(http.MethodGet)
		r.HandleFunc("/users/"+string(role)+"/{email}", s(checkRole(h, role))).Methods(http.MethodGet)
	}
	r.HandleFunc("/users/makeAdmin/{id}", s(withID(ack(h.MakeAdmin)))).Methods(http.MethodPatch)
	r.HandleFunc("/users/removeAdmin/{id}", s(withID(ack(h.RemoveAdmin)))).Methods(http.MethodPatch)

	r.HandleFunc("/users", s(withBody(h.Create))).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", s(withID(func(ctx context.Context, id primitive.ObjectID) (interface{}, error) {
		return h.Get(ctx, id)
	}))).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", s(withID(func(ctx context.Context, id primitive.ObjectID) (interface{}, error) {
		return h.Delete(ctx, id)
	}))).Methods(http.MethodDelete)

	r.HandleFunc("/user/{email}", s(withEmail(func(ctx context.Context, email string) (interface{}, error) {
		return h.GetByEmail(ctx, email)
	}))).Methods(http.MethodGet)
	r.HandleFunc("/user/student/{id}", s(withIDAndBody(func(ctx context.Context, id primitive.ObjectID, doc entity.Document) (interface{}, error) {
		return h.UpdateProfile(ctx, id, doc)
	}))).Methods(http.MethodPatch)
}

func registerBoard(r *mux.Router, s func(endpoint) http.HandlerFunc, h *boardHandler) {
	r.HandleFunc("/"+h.name, s(func(req *http.Request) (interface{}, error) {
		return h.List(req.Context())
	})).Methods(http.MethodGet)
	r.HandleFunc("/"+h.name, s(withBody(func(ctx context.Context, doc entity.Document) (interface{}, error) {
		return h.Create(ctx, doc)
	}))).Methods(http.MethodPost)
	r.HandleFunc("/"+h.name+"/{id}", s(withID(func(ctx context.Context, id primitive.ObjectID) (interface{}, error) {
		return h.Delete(ctx, id)
	}))).Methods(http.MethodDelete)
}

func registerLegacy(r *mux.Router, s func(endpoint) http.HandlerFunc, h *userHandler, boards []*boardHandler) {
	legacyList := map[entity.Role]string{
		entity.RoleAdmin:   "/getAllAdmins",
		entity.RoleTeacher: "/getAllTeachers",
		entity.RoleStudent: "/getAllStudents",
	}
	legacyCheck := map[entity.Role]string{
		entity.RoleAdmin:   "/getAdmin/{email}",
		entity.RoleTeacher: "/getTeacher/{email}",
		entity.RoleStudent: "/getStudent/{email}",
	}
	for _, role := range entity.Roles {
		r.HandleFunc(legacyList[role], s(listRole(h, role))).Methods(http.MethodGet)
		r.HandleFunc(legacyCheck[role], s(checkRole(h, role))).Methods(http.MethodGet)
	}

	r.HandleFunc("/getUserById/{id}", s(withID(func(ctx context.Context, id primitive.ObjectID) (interface{}, error) {
		return h.Get(ctx, id)
	}))).Methods(http.MethodGet)
	r.HandleFunc("/getUserByEmail/{email}", s(withEmail(func(ctx context.Context, email string) (interface{}, error) {
		return h.GetByEmail(ctx, email)
	}))).Methods(http.MethodGet)
	r.HandleFunc("/userUpdate/{id}", s(withIDAndBody(func(ctx context.Context, id primitive.ObjectID, doc entity.Document) (interface{}, error) {
		return h.Merge(ctx, id, doc)
	}))).Methods(http.MethodPatch)
	r.HandleFunc("/makeAdmin/{id}", s(withID(ack(h.MakeAdmin)))).Methods(http.MethodPatch)
	r.HandleFunc("/removeAdmin/{id}", s(withID(ack(h.RemoveAdmin)))).Methods(http.MethodPatch)
	r.HandleFunc("/deleteUser/{id}", s(withID(func(ctx context.Context, id primitive.ObjectID) (interface{}, error) {
		return h.Delete(ctx, id)
	}))).Methods(http.MethodDelete)

	for _, b := range boards {
		b := b
		// "/deleteEvent/{id}", "/deleteNotice/{id}"
		path := "/delete" + legacyBoardNames[b.name] + "/{id}"
		r.HandleFunc(path, s(withID(func(ctx context.Context, id primitive.ObjectID) (interface{}, error) {
			return b.Delete(ctx, id)
		}))).Methods(http.MethodDelete)
	}
}

var legacyBoardNames = map[string]string{
	store.EventsCollection:  "Event",
	store.NoticesCollection: "Notice",
}

func listRole(h *userHandler, role entity.Role) endpoint {
	return func(req *http.Request) (interface{}, error) {
		return h.List(req.Context(), role)
	}
}

func checkRole(h *userHandler, role entity.Role) endpoint {
	return withEmail(func(ctx context.Context, email string) (interface{}, error) {
		return h.HasRole(ctx, email, role)
	})
}

func ack(fn func(ctx context.Context, id primitive.ObjectID) (entity.UpdateAck, error)) func(ctx context.Context, id primitive.ObjectID) (interface{}, error) {
	return func(ctx context.Context, id primitive.ObjectID) (interface{}, error) {
		return fn(ctx, id)
	}
}
