package session

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
	sessionService "github.com/antsa-au/haystack-service/internal/service/session"
)

func newSessionServer(t *testing.T) (*httptest.Server, *sessionService.Store) {
	t.Helper()

	sessions := sessionService.NewStore(nil, time.Hour)
	personas := persona.NewMemoryStore(persona.Seed())

	r := chi.NewRouter()
	New(sessions, personas).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, sessions
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestCreateSessionDefaultsPersona(t *testing.T) {
	srv, sessions := newSessionServer(t)

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	payload := decodeBody(t, resp)
	sessionID, _ := payload["session_id"].(string)
	require.NotEmpty(t, sessionID)
	require.Equal(t, persona.TypeWebAssistant, payload["persona_type"])
	require.NotEmpty(t, payload["created_at"])

	_, err = sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
}

func TestCreateSessionStoresBearerToken(t *testing.T) {
	srv, sessions := newSessionServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/sessions", strings.NewReader(`{"persona_type":"jaimee_therapist","profile_id":"prof-1"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok-abc")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	payload := decodeBody(t, resp)

	sess, err := sessions.Get(context.Background(), payload["session_id"].(string))
	require.NoError(t, err)
	require.Equal(t, "tok-abc", sess.AuthToken)
	require.Equal(t, "prof-1", sess.ProfileID)
}

func TestCreateSessionRejectsUnknownPersona(t *testing.T) {
	srv, _ := newSessionServer(t)

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{"persona_type":"pirate"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionMessagesWithLimit(t *testing.T) {
	srv, sessions := newSessionServer(t)
	ctx := context.Background()
	_, err := sessions.CreateWithID(ctx, "sess-1", persona.TypeWebAssistant, nil, "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := sessions.AppendMessage(ctx, "sess-1", "user", "message")
		require.NoError(t, err)
	}

	resp, err := http.Get(srv.URL + "/sessions/sess-1/messages?limit=2")
	require.NoError(t, err)
	payload := decodeBody(t, resp)
	require.Equal(t, "sess-1", payload["session_id"])
	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)

	first, ok := messages[0].(map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, first["message_id"])
	require.Equal(t, "user", first["role"])
}

func TestSessionMessagesNotFound(t *testing.T) {
	srv, _ := newSessionServer(t)

	resp, err := http.Get(srv.URL + "/sessions/missing/messages")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	srv, sessions := newSessionServer(t)
	_, err := sessions.CreateWithID(context.Background(), "sess-del", persona.TypeWebAssistant, nil, "")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/sess-del", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	payload := decodeBody(t, resp)
	require.Equal(t, "Session deleted successfully", payload["message"])

	// A second delete reports not found.
	resp, err = http.DefaultClient.Do(req.Clone(context.Background()))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
