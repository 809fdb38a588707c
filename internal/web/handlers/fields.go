package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/field"
	"github.com/trellisdata/trellis/internal/lifecycle"
	"github.com/trellisdata/trellis/internal/web/response"
)

// FieldHandler serves the field lifecycle endpoints of a collection.
type FieldHandler struct {
	lifecycle *lifecycle.Service
	logger    *zap.Logger
}

// NewFieldHandler creates the field handler.
func NewFieldHandler(lc *lifecycle.Service, logger *zap.Logger) *FieldHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldHandler{lifecycle: lc, logger: logger}
}

// Create adds a field to a collection.
func (h *FieldHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name   string       `json:"name"`
		Type   field.Type   `json:"type"`
		Config field.Config `json:"configuration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if in.Name == "" {
		response.BadRequest(w, "name is required")
		return
	}

	f, err := h.lifecycle.CreateField(r.Context(), chi.URLParam(r, "slug"), lifecycle.FieldInput{
		Name:   in.Name,
		Type:   in.Type,
		Config: in.Config,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusCreated, f)
}

// Update changes a field's name, type, or configuration.
func (h *FieldHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name   *string       `json:"name"`
		Type   *field.Type   `json:"type"`
		Config *field.Config `json:"configuration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	f, err := h.lifecycle.UpdateField(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "fieldID"), lifecycle.FieldUpdate{
		Name:   in.Name,
		Type:   in.Type,
		Config: in.Config,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, f)
}

// Trash soft-deletes a field.
func (h *FieldHandler) Trash(w http.ResponseWriter, r *http.Request) {
	f, err := h.lifecycle.TrashField(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "fieldID"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, f)
}

// Restore brings a trashed field back.
func (h *FieldHandler) Restore(w http.ResponseWriter, r *http.Request) {
	f, err := h.lifecycle.RestoreField(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "fieldID"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, f)
}
