package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/arkvault/internal/monitor"
	"github.com/starford/arkvault/internal/storeservice"
)

// IndexProvider exposes the monitored index, nil until the first build.
type IndexProvider interface {
	Index() monitor.Index
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(ix IndexProvider, svc *storeservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(ix, svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Index.
	r.Get("/index", h.IndexStatus)
	r.Get("/index/collisions", h.Collisions)

	// Named storages.
	r.Get("/storages/{name}", h.ListStorage)
	r.Get("/storages/{name}/{id}", h.ReadValue)
	r.Post("/storages/{name}/{id}", h.AppendValue)
	r.Put("/storages/{name}/{id}", h.InsertValue)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
