package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/service/pipeline"
	"github.com/antsa-au/haystack-service/internal/service/session"
	"github.com/antsa-au/haystack-service/internal/service/uistate"
)

type fakeChat struct {
	lastRequest pipeline.Request
}

func (f *fakeChat) Stream(ctx context.Context, req pipeline.Request, emit func(chunk string)) pipeline.Result {
	f.lastRequest = req
	emit("Hello")
	emit(" there")
	return pipeline.Result{
		Response:  "Hello there",
		UIActions: []map[string]any{{"type": "navigate", "url": "/clients"}},
	}
}

type wsFixture struct {
	sessions *session.Store
	states   *uistate.Manager
	chat     *fakeChat
	registry *Registry
	conn     *websocket.Conn
}

func newWSFixture(t *testing.T, sessionID string) *wsFixture {
	t.Helper()

	f := &wsFixture{
		sessions: session.NewStore(nil, time.Hour),
		states:   uistate.NewManager(nil),
		chat:     &fakeChat{},
		registry: NewRegistry(),
	}

	r := chi.NewRouter()
	New(f.sessions, f.states, f.chat, f.registry).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	f.conn = conn
	return f
}

func (f *wsFixture) read(t *testing.T) map[string]any {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]any
	require.NoError(t, f.conn.ReadJSON(&event))
	return event
}

func (f *wsFixture) send(t *testing.T, payload map[string]any) {
	t.Helper()
	require.NoError(t, f.conn.WriteJSON(payload))
}

func TestConnectionEstablished(t *testing.T) {
	f := newWSFixture(t, "sess-1")

	event := f.read(t)
	require.Equal(t, "connection_established", event["type"])
	require.Equal(t, "sess-1", event["session_id"])
	require.NotEmpty(t, event["connection_id"])
	require.Equal(t, 1, f.registry.Count())
}

func TestPingPong(t *testing.T) {
	f := newWSFixture(t, "sess-1")
	f.read(t)

	f.send(t, map[string]any{"type": "ping"})
	event := f.read(t)
	require.Equal(t, "pong", event["type"])
}

func TestHeartbeatAck(t *testing.T) {
	f := newWSFixture(t, "sess-1")
	f.read(t)

	f.send(t, map[string]any{"type": "heartbeat", "timestamp": "2026-08-27T00:00:00Z"})
	event := f.read(t)
	require.Equal(t, "heartbeat_ack", event["type"])
	require.Equal(t, "2026-08-27T00:00:00Z", event["timestamp"])
	require.NotEmpty(t, event["server_time"])
	require.Equal(t, "sess-1", event["session_id"])
}

func TestChatMessageStreamsAndCompletes(t *testing.T) {
	f := newWSFixture(t, "sess-chat")
	_, err := f.sessions.CreateWithID(context.Background(), "sess-chat", persona.TypeWebAssistant, nil, "")
	require.NoError(t, err)
	f.read(t)

	f.send(t, map[string]any{"type": "chat_message", "message": "show my clients", "auth_token": "tok-123"})

	event := f.read(t)
	require.Equal(t, "typing", event["type"])
	require.Equal(t, true, event["typing"])

	event = f.read(t)
	require.Equal(t, "message_chunk", event["type"])
	require.Equal(t, "Hello", event["content"])
	require.Equal(t, "Hello", event["full_content"])

	event = f.read(t)
	require.Equal(t, "message_chunk", event["type"])
	require.Equal(t, " there", event["content"])
	require.Equal(t, "Hello there", event["full_content"])

	event = f.read(t)
	require.Equal(t, "ui_action", event["type"])
	require.Equal(t, "haystack", event["pipeline"])
	action, ok := event["action"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "navigate", action["type"])

	event = f.read(t)
	require.Equal(t, "message_complete", event["type"])

	event = f.read(t)
	require.Equal(t, "typing", event["type"])
	require.Equal(t, false, event["typing"])

	require.Equal(t, "show my clients", f.chat.lastRequest.UserMessage)
	require.Equal(t, "tok-123", f.chat.lastRequest.AuthToken)
	require.Equal(t, persona.TypeWebAssistant, f.chat.lastRequest.PersonaType)
}

func TestUIStateUpdateStoresStateAndToken(t *testing.T) {
	f := newWSFixture(t, "sess-ui")
	_, err := f.sessions.CreateWithID(context.Background(), "sess-ui", persona.TypeWebAssistant, nil, "")
	require.NoError(t, err)
	f.read(t)

	f.send(t, map[string]any{
		"type":       "ui_state_update",
		"state":      map[string]any{"page_type": "dashboard", "page_url": "/dashboard"},
		"auth_token": "tok-ui",
	})

	// The read loop handles frames in order; a ping round trip confirms the
	// state update has been applied.
	f.send(t, map[string]any{"type": "ping"})
	f.read(t)

	state := f.states.Get(context.Background(), "sess-ui")
	require.Equal(t, "/dashboard", state.PageURL())
	require.Equal(t, "tok-ui", f.states.AuthToken(context.Background(), "sess-ui"))

	sess, err := f.sessions.Get(context.Background(), "sess-ui")
	require.NoError(t, err)
	require.Equal(t, "tok-ui", sess.AuthToken)
}

func TestRegistryBroadcastReachesConnection(t *testing.T) {
	f := newWSFixture(t, "sess-bc")
	f.read(t)

	f.registry.Broadcast("sess-bc", map[string]any{"type": "stage_started", "stage": "policy_check"})
	event := f.read(t)
	require.Equal(t, "stage_started", event["type"])
	require.Equal(t, "policy_check", event["stage"])

	// Unknown sessions are a no-op.
	f.registry.Broadcast("sess-other", map[string]any{"type": "noise"})
}
