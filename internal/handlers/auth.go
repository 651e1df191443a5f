package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/ansonkao/time-tracker/internal/request"
	"github.com/ansonkao/time-tracker/internal/session"
	"github.com/ansonkao/time-tracker/internal/validation"
)

// AuthHandler exchanges a Google Calendar access token, obtained by the
// frontend's OAuth flow, for a signed session token the API accepts.
type AuthHandler struct {
	sessions *session.Manager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *session.Manager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// RegisterRoutes registers the public session route on the given router
// The router should already have the /api/v1/auth/session prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.CreateSession).Methods("POST")
}

// RegisterProtectedRoutes registers routes requiring an existing session.
func (h *AuthHandler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// CreateSessionRequest represents a session creation request
type CreateSessionRequest struct {
	Email       string `json:"email" validate:"required,email"`
	AccessToken string `json:"access_token" validate:"required"`
}

// CreateSession issues a session token wrapping the upstream access token
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
				return
			}
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	token, err := h.sessions.Issue(req.Email, req.AccessToken)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"session_token": token})
}

// GetMe returns the current session identity
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Session not found in context")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"email":      sess.Email,
		"expires_at": sess.ExpiresAt,
	})
}
