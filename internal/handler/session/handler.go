// Package session exposes the REST session lifecycle: create, read history,
// delete. The WebSocket protocol reuses the same store.
package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/antsa-au/haystack-service/internal/model/chat"
	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/platform"
	sessionService "github.com/antsa-au/haystack-service/internal/service/session"
	"github.com/antsa-au/haystack-service/pkg/utils"
)

// Handler owns the /sessions routes.
type Handler struct {
	sessions *sessionService.Store
	personas persona.Store
}

// New creates the session handler.
func New(sessions *sessionService.Store, personas persona.Store) *Handler {
	return &Handler{sessions: sessions, personas: personas}
}

// RegisterRoutes mounts the session endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Get("/sessions/{sessionID}/messages", h.handleMessages)
	r.Delete("/sessions/{sessionID}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaType string         `json:"persona_type"`
		Context     map[string]any `json:"context"`
		ProfileID   string         `json:"profile_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.PersonaType == "" {
		payload.PersonaType = persona.TypeWebAssistant
	}
	if _, ok := h.personas.Find(payload.PersonaType); !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown persona type: "+payload.PersonaType)
		return
	}

	token := BearerToken(r)
	profileID := payload.ProfileID
	if profileID == "" && token != "" {
		profileID = platform.ProfileIDFromToken(token)
	}

	sess, err := h.sessions.Create(r.Context(), payload.PersonaType, payload.Context, profileID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if token != "" {
		if err := h.sessions.SetAuth(r.Context(), sess.ID, token, profileID); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"session_id":   sess.ID,
		"persona_type": sess.PersonaType,
		"created_at":   sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sessionService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	messages := sess.RecentMessages(limit)
	if messages == nil {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
		if errors.Is(err, sessionService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"message": "Session deleted successfully"})
}

// BearerToken extracts the token from an Authorization header, or empty.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
