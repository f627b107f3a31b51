package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/service/pipeline"
	sessionService "github.com/antsa-au/haystack-service/internal/service/session"
)

// fakeResponder persists the turn like the real pipeline does, so the
// handler can read back the assistant message ID.
type fakeResponder struct {
	sessions    *sessionService.Store
	lastRequest pipeline.Request
}

func (f *fakeResponder) Respond(ctx context.Context, req pipeline.Request) pipeline.Result {
	f.lastRequest = req
	f.sessions.AppendMessage(ctx, req.SessionID, "user", req.UserMessage)
	f.sessions.AppendMessage(ctx, req.SessionID, "assistant", "You have 3 clients.")
	return pipeline.Result{Response: "You have 3 clients."}
}

func newChatServer(t *testing.T) (*httptest.Server, *fakeResponder, *sessionService.Store) {
	t.Helper()

	sessions := sessionService.NewStore(nil, time.Hour)
	responder := &fakeResponder{sessions: sessions}
	personas := persona.NewMemoryStore(persona.Seed())

	r := chi.NewRouter()
	New(responder, sessions, personas).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, responder, sessions
}

func postChat(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestChatAutoCreatesSession(t *testing.T) {
	srv, responder, sessions := newChatServer(t)

	resp, payload := postChat(t, srv, `{"message":"how many clients do I have?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, "You have 3 clients.", payload["response"])
	sessionID, _ := payload["session_id"].(string)
	require.NotEmpty(t, sessionID)
	require.NotEmpty(t, payload["message_id"])
	require.NotEmpty(t, payload["timestamp"])

	sess, err := sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	require.Equal(t, persona.TypeWebAssistant, responder.lastRequest.PersonaType)
}

func TestChatReusesExistingSession(t *testing.T) {
	srv, responder, sessions := newChatServer(t)
	sess, err := sessions.CreateWithID(context.Background(), "sess-1", persona.TypeJaimeeTherapist, nil, "")
	require.NoError(t, err)

	_, payload := postChat(t, srv, `{"message":"I feel anxious","persona_type":"jaimee_therapist","session_id":"sess-1"}`)
	require.Equal(t, sess.ID, payload["session_id"])
	require.Equal(t, "sess-1", responder.lastRequest.SessionID)
	require.Equal(t, persona.TypeJaimeeTherapist, responder.lastRequest.PersonaType)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv, _, _ := newChatServer(t)

	resp, _ := postChat(t, srv, `{"message":"  "}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatRejectsUnknownPersona(t *testing.T) {
	srv, _, _ := newChatServer(t)

	resp, _ := postChat(t, srv, `{"message":"hi","persona_type":"pirate"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
