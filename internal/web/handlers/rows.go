package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/query"
	"github.com/trellisdata/trellis/internal/rows"
	"github.com/trellisdata/trellis/internal/web/response"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// RowHandler serves row CRUD for user-defined collections. Filter, sort,
// search, and trash parameters pass straight through to the query compiler.
type RowHandler struct {
	rows   *rows.Service
	logger *zap.Logger
}

// NewRowHandler creates the row handler.
func NewRowHandler(service *rows.Service, logger *zap.Logger) *RowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowHandler{rows: service, logger: logger}
}

// List returns the rows matching the request's query parameters, plus a
// total count for the same filter.
func (h *RowHandler) List(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	req := requestParams(r)

	docs, err := h.rows.List(r.Context(), slug, req, rows.ListOptions{
		Populate: r.URL.Query().Get("populate") == "true",
		Limit:    limitParam(r),
		Offset:   offsetParam(r),
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	total, err := h.rows.Count(r.Context(), slug, req)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.List(w, docs, int64(total))
}

// Get returns one row by id.
func (h *RowHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.rows.Get(r.Context(),
		chi.URLParam(r, "slug"),
		chi.URLParam(r, "id"),
		r.URL.Query().Get("populate") == "true")
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, doc)
}

// Create stores a new row.
func (h *RowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	doc, err := h.rows.Create(r.Context(), chi.URLParam(r, "slug"), attrs)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusCreated, doc)
}

// Update merges attributes into an existing row.
func (h *RowHandler) Update(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	doc, err := h.rows.Update(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "id"), attrs)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, doc)
}

// Trash soft-deletes a row.
func (h *RowHandler) Trash(w http.ResponseWriter, r *http.Request) {
	doc, err := h.rows.Trash(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, doc)
}

// Restore brings a trashed row back.
func (h *RowHandler) Restore(w http.ResponseWriter, r *http.Request) {
	doc, err := h.rows.Restore(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, doc)
}

// requestParams flattens the URL query into the single-valued parameter map
// the query compiler consumes. Repeated parameters keep their first value.
func requestParams(r *http.Request) query.Request {
	req := make(query.Request)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			req[key] = values[0]
		}
	}
	return req
}

func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func offsetParam(r *http.Request) int {
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
