package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/collection"
	"github.com/trellisdata/trellis/internal/lifecycle"
	"github.com/trellisdata/trellis/internal/web/response"
)

// CollectionHandler serves collection metadata and lifecycle endpoints.
type CollectionHandler struct {
	store     *collection.Store
	lifecycle *lifecycle.Service
	logger    *zap.Logger
}

// NewCollectionHandler creates the collection handler.
func NewCollectionHandler(store *collection.Store, lc *lifecycle.Service, logger *zap.Logger) *CollectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionHandler{store: store, lifecycle: lc, logger: logger}
}

// List returns all collections.
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	collections, err := h.store.List(r.Context())
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.List(w, collections, int64(len(collections)))
}

// Get returns one collection by slug.
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	coll, err := h.store.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, coll)
}

// Create creates a new collection.
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name   string            `json:"name"`
		Config collection.Config `json:"configuration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if in.Name == "" {
		response.BadRequest(w, "name is required")
		return
	}

	coll, err := h.lifecycle.CreateCollection(r.Context(), lifecycle.CollectionInput{
		Name:   in.Name,
		Config: in.Config,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusCreated, coll)
}

// Update changes a collection's display name or configuration.
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name   *string            `json:"name"`
		Config *collection.Config `json:"configuration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	coll, err := h.lifecycle.UpdateCollection(r.Context(), chi.URLParam(r, "slug"), lifecycle.CollectionUpdate{
		Name:   in.Name,
		Config: in.Config,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, coll)
}

// Trash soft-deletes a collection.
func (h *CollectionHandler) Trash(w http.ResponseWriter, r *http.Request) {
	coll, err := h.lifecycle.TrashCollection(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, coll)
}

// Restore brings a trashed collection back.
func (h *CollectionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	coll, err := h.lifecycle.RestoreCollection(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, coll)
}
