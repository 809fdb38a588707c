// Package handlers implements the HTTP handlers for the API surface.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/engine"
	"github.com/trellisdata/trellis/internal/registry"
	"github.com/trellisdata/trellis/internal/schema"
	"github.com/trellisdata/trellis/internal/web/auth"
	"github.com/trellisdata/trellis/internal/web/response"
)

// AuthHandler serves login and registration against the users system
// collection.
type AuthHandler struct {
	registry *registry.Registry
	auth     *auth.Service
	logger   *zap.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(reg *registry.Registry, authService *auth.Service, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{registry: reg, auth: authService, logger: logger}
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a user and returns a token for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if creds.Email == "" || creds.Password == "" {
		response.BadRequest(w, "email and password are required")
		return
	}

	users, ok := h.registry.Get(schema.SystemUsers)
	if !ok {
		response.Error(w, h.logger, engine.ErrCollectionMissing)
		return
	}

	if _, err := h.findByEmail(r, users, creds.Email); err == nil {
		response.JSON(w, http.StatusConflict, map[string]interface{}{
			"error":   "conflict",
			"message": "a user with that email already exists",
		})
		return
	}

	hashed, err := auth.HashPassword(creds.Password)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := users.Insert(r.Context(), map[string]interface{}{
		"name":     creds.Name,
		"email":    creds.Email,
		"password": hashed,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	h.respondWithToken(w, http.StatusCreated, user)
}

// Login authenticates a user by email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	users, ok := h.registry.Get(schema.SystemUsers)
	if !ok {
		response.Error(w, h.logger, engine.ErrCollectionMissing)
		return
	}

	user, err := h.findByEmail(r, users, creds.Email)
	if err != nil {
		h.unauthorized(w)
		return
	}

	hash, _ := user["password"].(string)
	if !auth.CheckPassword(creds.Password, hash) {
		h.unauthorized(w)
		return
	}

	h.respondWithToken(w, http.StatusOK, user)
}

func (h *AuthHandler) findByEmail(r *http.Request, users *registry.Model, email string) (map[string]interface{}, error) {
	filter := engine.NewFilter().Where(engine.Condition{
		Attr: "email", Op: engine.OpEqual, Value: email,
	})
	docs, err := users.Find(r.Context(), filter, nil, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, engine.ErrNotFound
	}
	return docs[0], nil
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user map[string]interface{}) {
	id, _ := user[engine.AttrID].(string)
	email, _ := user["email"].(string)

	token, err := h.auth.GenerateToken(id, email)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	delete(user, "password")
	response.JSON(w, status, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) unauthorized(w http.ResponseWriter) {
	response.JSON(w, http.StatusUnauthorized, map[string]interface{}{
		"error":   "unauthorized",
		"message": "invalid email or password",
	})
}
