// Package chat exposes the non-streaming REST chat endpoint. Interactive
// frontends use the WebSocket; this endpoint serves integrations that want a
// single request/response turn.
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	sessionHandler "github.com/antsa-au/haystack-service/internal/handler/session"
	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/platform"
	"github.com/antsa-au/haystack-service/internal/service/pipeline"
	sessionService "github.com/antsa-au/haystack-service/internal/service/session"
	"github.com/antsa-au/haystack-service/pkg/utils"
)

// Responder runs one chat turn to completion.
type Responder interface {
	Respond(ctx context.Context, req pipeline.Request) pipeline.Result
}

// Handler owns the /chat route.
type Handler struct {
	chat     Responder
	sessions *sessionService.Store
	personas persona.Store
}

// New creates the chat handler.
func New(chat Responder, sessions *sessionService.Store, personas persona.Store) *Handler {
	return &Handler{chat: chat, sessions: sessions, personas: personas}
}

// RegisterRoutes mounts the chat endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message     string         `json:"message"`
		PersonaType string         `json:"persona_type"`
		SessionID   string         `json:"session_id"`
		Context     map[string]any `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	if payload.PersonaType == "" {
		payload.PersonaType = persona.TypeWebAssistant
	}
	if _, ok := h.personas.Find(payload.PersonaType); !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown persona type: "+payload.PersonaType)
		return
	}

	token := sessionHandler.BearerToken(r)

	sessionID := payload.SessionID
	if sessionID == "" {
		sess, err := h.sessions.Create(r.Context(), payload.PersonaType, payload.Context, platform.ProfileIDFromToken(token))
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sessionID = sess.ID
	}

	result := h.chat.Respond(r.Context(), pipeline.Request{
		SessionID:   sessionID,
		PersonaType: payload.PersonaType,
		UserMessage: payload.Message,
		Context:     payload.Context,
		AuthToken:   token,
	})

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"response":   result.Response,
		"session_id": sessionID,
		"message_id": h.lastMessageID(r, sessionID),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// lastMessageID reads back the ID of the assistant message the pipeline just
// persisted, so clients can reference it in follow-up calls.
func (h *Handler) lastMessageID(r *http.Request, sessionID string) string {
	sess, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil || len(sess.Messages) == 0 {
		return ""
	}
	return sess.Messages[len(sess.Messages)-1].ID
}
