// Package stream mirrors the WebSocket chat protocol over Server-Sent
// Events, for clients that cannot hold a socket open.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionHandler "github.com/antsa-au/haystack-service/internal/handler/session"
	"github.com/antsa-au/haystack-service/internal/service/pipeline"
	sessionService "github.com/antsa-au/haystack-service/internal/service/session"
	"github.com/antsa-au/haystack-service/pkg/utils"
)

// ChatStreamer runs one chat turn, emitting response text as it is produced.
type ChatStreamer interface {
	Stream(ctx context.Context, req pipeline.Request, emit func(chunk string)) pipeline.Result
}

// Handler owns the /chat/stream route.
type Handler struct {
	chat     ChatStreamer
	sessions *sessionService.Store
}

// New creates the stream handler.
func New(chat ChatStreamer, sessions *sessionService.Store) *Handler {
	return &Handler{chat: chat, sessions: sessions}
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/stream", h.handleStream)
}

// StreamResponse is one SSE chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	message := r.URL.Query().Get("message")
	if sessionID == "" || message == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id and message query parameters are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sess, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "Session not found")
		return
	}

	authToken := sess.AuthToken
	if authToken == "" {
		authToken = sessionHandler.BearerToken(r)
	}
	if authToken == "" {
		authToken = r.URL.Query().Get("token")
	}

	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "start", SessionID: sessionID})

	result := h.chat.Stream(r.Context(), pipeline.Request{
		SessionID:   sessionID,
		PersonaType: sess.PersonaType,
		UserMessage: message,
		Context:     sess.Context,
		AuthToken:   authToken,
	}, func(chunk string) {
		if chunk != "" {
			utils.SendSSEChunk(w, flusher, StreamResponse{Event: "delta", SessionID: sessionID, Content: chunk})
		}
	})

	for _, action := range result.UIActions {
		payload, err := json.Marshal(action)
		if err != nil {
			continue
		}
		utils.SendSSEChunk(w, flusher, StreamResponse{Event: "ui_action", SessionID: sessionID, Content: string(payload)})
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "message", SessionID: sessionID, Content: result.Response})
	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})

	log.Printf("[stream] completed response for session=%s", sessionID)
}
