// Package ws carries the realtime chat protocol: one socket per frontend tab,
// JSON messages in both directions, progress fan-out through a shared
// connection registry.
package ws

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antsa-au/haystack-service/internal/model/persona"
	uistateModel "github.com/antsa-au/haystack-service/internal/model/uistate"
	"github.com/antsa-au/haystack-service/internal/platform"
	"github.com/antsa-au/haystack-service/internal/service/pipeline"
	"github.com/antsa-au/haystack-service/internal/service/session"
	"github.com/antsa-au/haystack-service/internal/service/uistate"
)

// ChatStreamer runs one chat turn, emitting response text as it is produced.
type ChatStreamer interface {
	Stream(ctx context.Context, req pipeline.Request, emit func(chunk string)) pipeline.Result
}

// Handler owns the /ws endpoint.
type Handler struct {
	sessions *session.Store
	states   *uistate.Manager
	chat     ChatStreamer
	registry *Registry
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler. A nil chat streamer degrades chat
// messages to an error reply while keeping heartbeats and UI state working.
func New(sessions *session.Store, states *uistate.Manager, chat ChatStreamer, registry *Registry) *Handler {
	return &Handler{
		sessions: sessions,
		states:   states,
		chat:     chat,
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	State      map[string]any `json:"state"`
	Context    map[string]any `json:"context"`
	AuthToken  string         `json:"auth_token"`
	Token      string         `json:"token"`
	ProfileID  string         `json:"profile_id"`
	ProfileID2 string         `json:"profileId"`
	Timestamp  string         `json:"timestamp"`
}

func (m *inboundMessage) token() string {
	if m.AuthToken != "" {
		return m.AuthToken
	}
	return m.Token
}

func (m *inboundMessage) profileID() string {
	if m.ProfileID != "" {
		return m.ProfileID
	}
	return m.ProfileID2
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}
	queryToken := r.URL.Query().Get("token")

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer sock.Close()

	conn := &Conn{id: uuid.NewString(), sock: sock}
	h.registry.add(sessionID, conn)
	defer h.registry.remove(sessionID, conn)

	log.Printf("[ws] connected session=%s connection=%s", sessionID, conn.id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sock.SetReadDeadline(time.Now().Add(60 * time.Second))
	sock.SetPongHandler(func(string) error {
		sock.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)

	conn.Send(map[string]any{
		"type":          "connection_established",
		"session_id":    sessionID,
		"connection_id": conn.id,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})

	for {
		var msg inboundMessage
		if err := sock.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error session=%s: %v", sessionID, err)
			}
			return
		}
		sock.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch msg.Type {
		case "ping":
			conn.Send(map[string]any{"type": "pong", "timestamp": time.Now().UTC().Format(time.RFC3339)})
		case "heartbeat":
			h.handleHeartbeat(ctx, conn, sessionID, &msg)
		case "ui_state_update":
			h.handleUIStateUpdate(ctx, sessionID, &msg)
		default:
			// chat_message, and legacy frames that carry a bare message field.
			if strings.TrimSpace(msg.Message) == "" {
				continue
			}
			h.handleChatMessage(ctx, conn, sessionID, queryToken, &msg)
		}
	}
}

func (h *Handler) handleHeartbeat(ctx context.Context, conn *Conn, sessionID string, msg *inboundMessage) {
	if err := h.sessions.Touch(ctx, sessionID); err != nil {
		log.Printf("[ws] heartbeat touch failed session=%s: %v", sessionID, err)
	}
	conn.Send(map[string]any{
		"type":        "heartbeat_ack",
		"timestamp":   msg.Timestamp,
		"server_time": time.Now().UTC().Format(time.RFC3339),
		"session_id":  sessionID,
	})
}

func (h *Handler) handleUIStateUpdate(ctx context.Context, sessionID string, msg *inboundMessage) {
	token := msg.token()
	h.states.Replace(ctx, sessionID, uistateModel.State(msg.State), token)

	if token != "" {
		profileID := msg.profileID()
		if profileID == "" {
			profileID = platform.ProfileIDFromToken(token)
		}
		if err := h.sessions.SetAuth(ctx, sessionID, token, profileID); err != nil {
			log.Printf("[ws] auth update failed session=%s: %v", sessionID, err)
		}
	}

	log.Printf("[ws] UI state updated session=%s", sessionID)
}

func (h *Handler) handleChatMessage(ctx context.Context, conn *Conn, sessionID, queryToken string, msg *inboundMessage) {
	conn.Send(map[string]any{"type": "typing", "typing": true, "session_id": sessionID})
	defer conn.Send(map[string]any{"type": "typing", "typing": false, "session_id": sessionID})

	if h.chat == nil {
		conn.Send(map[string]any{
			"type":       "error",
			"error":      "chat is unavailable while the AI model is not configured",
			"session_id": sessionID,
		})
		return
	}

	personaType := persona.TypeWebAssistant
	authToken := ""
	if sess, err := h.sessions.Get(ctx, sessionID); err == nil {
		personaType = sess.PersonaType
		authToken = sess.AuthToken
	}
	if authToken == "" {
		authToken = msg.token()
	}
	if authToken == "" {
		authToken = h.states.AuthToken(ctx, sessionID)
	}
	if authToken == "" {
		authToken = queryToken
	}

	req := pipeline.Request{
		SessionID:   sessionID,
		PersonaType: personaType,
		UserMessage: msg.Message,
		Context:     h.pipelineContext(ctx, sessionID, msg),
		AuthToken:   authToken,
	}

	fullContent := ""
	result := h.chat.Stream(ctx, req, func(chunk string) {
		fullContent += chunk
		conn.Send(map[string]any{
			"type":         "message_chunk",
			"content":      chunk,
			"full_content": fullContent,
			"session_id":   sessionID,
		})
	})

	for _, action := range result.UIActions {
		conn.Send(map[string]any{
			"type":       "ui_action",
			"action":     action,
			"pipeline":   "haystack",
			"session_id": sessionID,
		})
	}

	conn.Send(map[string]any{"type": "message_complete", "session_id": sessionID})
}

// pipelineContext assembles the page context the pipeline and tools see,
// derived from the latest UI state pushed over this socket.
func (h *Handler) pipelineContext(ctx context.Context, sessionID string, msg *inboundMessage) map[string]any {
	state := h.states.Get(ctx, sessionID)
	derived := h.states.DeriveContext(state)

	return map[string]any{
		"page_url":        state.PageURL(),
		"ui_capabilities": derived.Capabilities,
		"client_id":       state.ClientID(),
		"active_tab":      state.ActiveTab(),
		"page_context":    derived.PageType,
		"profile_id":      msg.profileID(),
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
