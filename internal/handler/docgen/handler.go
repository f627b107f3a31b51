// Package docgen exposes the document generation endpoint. Generation runs
// synchronously; progress events stream to the caller's WebSocket session
// while the HTTP request is held open.
package docgen

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionHandler "github.com/antsa-au/haystack-service/internal/handler/session"
	"github.com/antsa-au/haystack-service/internal/platform"
	"github.com/antsa-au/haystack-service/internal/service/docgen"
	"github.com/antsa-au/haystack-service/pkg/utils"
)

// Generator runs a document generation job.
type Generator interface {
	GenerateAgentic(ctx context.Context, auth platform.Auth, req docgen.Request, emit docgen.ProgressFunc) docgen.Document
}

// Broadcaster pushes progress events to a session's live connections.
type Broadcaster interface {
	Broadcast(sessionID string, payload any)
}

// Handler owns the document generation route.
type Handler struct {
	generator Generator
	registry  Broadcaster
}

// New creates the docgen handler.
func New(generator Generator, registry Broadcaster) *Handler {
	return &Handler{generator: generator, registry: registry}
}

// RegisterRoutes mounts the generation endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-document-from-template", h.handleGenerate)
}

type generateRequest struct {
	docgen.Request
	SessionID string `json:"session_id"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var payload generateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Template.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "template with content is required")
		return
	}
	if len(payload.SessionIDs) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "sessionIds is required")
		return
	}

	token := sessionHandler.BearerToken(r)
	if token == "" {
		utils.RespondError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	profileID := r.Header.Get("profileid")
	if profileID == "" {
		profileID = platform.ProfileIDFromToken(token)
	}
	auth := platform.Auth{Token: token, ProfileID: profileID}

	emit := docgen.ProgressFunc(nil)
	if payload.SessionID != "" && h.registry != nil {
		sessionID := payload.SessionID
		emit = func(p docgen.Progress) {
			event := map[string]any{
				"type":       p.Type,
				"stage":      p.Stage,
				"message":    p.Message,
				"session_id": sessionID,
			}
			if payload.GenerationID != "" {
				event["generation_id"] = payload.GenerationID
			}
			if len(p.Details) > 0 {
				event["details"] = p.Details
			}
			h.registry.Broadcast(sessionID, event)
		}
	}

	doc := h.generator.GenerateAgentic(r.Context(), auth, payload.Request, emit)

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"document": doc,
	})
}
