package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/arkvault/internal/storeservice"
)

// maxValueBody bounds request bodies of write endpoints.
const maxValueBody = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	ix  IndexProvider
	svc *storeservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(ix IndexProvider, svc *storeservice.Service) *Handler {
	return &Handler{ix: ix, svc: svc}
}

// IndexStatus handles GET /api/index.
//
//	@Summary		Index size and freshness
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	IndexStatusResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index [get]
func (h *Handler) IndexStatus(w http.ResponseWriter, r *http.Request) {
	ix := h.ix.Index()
	if ix == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index not ready"))
		return
	}
	writeJSON(w, http.StatusOK, IndexStatusResponse{
		Entries:    ix.Size(),
		Collisions: len(ix.Collisions()),
		LastUpdate: ix.LastUpdate(),
	})
}

// Collisions handles GET /api/index/collisions.
//
//	@Summary		Identifiers computed for more than one path
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	CollisionsResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/collisions [get]
func (h *Handler) Collisions(w http.ResponseWriter, r *http.Request) {
	ix := h.ix.Index()
	if ix == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index not ready"))
		return
	}
	out := CollisionsResponse{Collisions: []CollisionDTO{}}
	for _, c := range ix.Collisions() {
		out.Collisions = append(out.Collisions, CollisionDTO{ID: c.ID.String(), Count: c.Count, Paths: c.Paths})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListStorage handles GET /api/storages/{name}.
//
//	@Summary		List the values of a named storage
//	@Tags			storages
//	@Produce		json
//	@Param			name		path		string	true	"Storage alias"
//	@Param			versions	query		bool	false	"One item per retained generation"
//	@Success		200			{object}	StorageListResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name} [get]
func (h *Handler) ListStorage(w http.ResponseWriter, r *http.Request) {
	name, ok := h.storageName(w, r)
	if !ok {
		return
	}
	versions, _ := strconv.ParseBool(r.URL.Query().Get("versions"))
	report, err := h.svc.List(r.Context(), name, "", versions)
	if err != nil {
		writeError(w, "list storage", err)
		return
	}
	writeJSON(w, http.StatusOK, StorageListResponse{Storage: name, Items: storeservice.Items(report)})
}

// ReadValue handles GET /api/storages/{name}/{id}.
//
//	@Summary		Read the value stored for a resource
//	@Tags			storages
//	@Produce		json
//	@Param			name	path		string	true	"Storage alias"
//	@Param			id		path		string	true	"Resource id"
//	@Success		200		{object}	ValueDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/{id} [get]
func (h *Handler) ReadValue(w http.ResponseWriter, r *http.Request) {
	name, ok := h.storageName(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Read(r.Context(), name, "", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "read value", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// AppendValue handles POST /api/storages/{name}/{id}.
//
//	@Summary		Append to the value stored for a resource
//	@Tags			storages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		WriteValueRequest	true	"Content to append"
//	@Success		200		{object}	ValueDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/{id} [post]
func (h *Handler) AppendValue(w http.ResponseWriter, r *http.Request) {
	h.writeValue(w, r, h.svc.Append)
}

// InsertValue handles PUT /api/storages/{name}/{id}.
//
//	@Summary		Replace the value stored for a resource
//	@Tags			storages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		WriteValueRequest	true	"New content"
//	@Success		200		{object}	ValueDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/{id} [put]
func (h *Handler) InsertValue(w http.ResponseWriter, r *http.Request) {
	h.writeValue(w, r, h.svc.Insert)
}

type writeFunc func(ctx context.Context, name, kind, id, content, format string) error

func (h *Handler) writeValue(w http.ResponseWriter, r *http.Request, write writeFunc) {
	name, ok := h.storageName(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxValueBody)
	var req WriteValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := write(r.Context(), name, "", id, req.Content, req.Format); err != nil {
		writeError(w, "write value", err)
		return
	}
	d, err := h.svc.Read(r.Context(), name, "", id)
	if err != nil {
		writeError(w, "read value", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// storageName accepts configured aliases only; arbitrary filesystem paths
// are not reachable over HTTP.
func (h *Handler) storageName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if !h.svc.HasAlias(name) {
		writeJSON(w, http.StatusNotFound, errorBody("unknown storage"))
		return "", false
	}
	return name, true
}
