package stream

import (
	"bufio"
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

type fakeChat struct {
	lastRequest pipeline.Request
}

func (f *fakeChat) Stream(ctx context.Context, req pipeline.Request, emit func(chunk string)) pipeline.Result {
	f.lastRequest = req
	emit("It ")
	emit("works")
	return pipeline.Result{
		Response:  "It works",
		UIActions: []map[string]any{{"type": "navigate", "url": "/sessions"}},
	}
}

func newStreamServer(t *testing.T) (*httptest.Server, *fakeChat, *sessionService.Store) {
	t.Helper()

	sessions := sessionService.NewStore(nil, time.Hour)
	chat := &fakeChat{}

	r := chi.NewRouter()
	New(chat, sessions).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, chat, sessions
}

// readSSE collects the data payloads of every event in the response body.
func readSSE(t *testing.T, resp *http.Response) []StreamResponse {
	t.Helper()

	var events []StreamResponse
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event StreamResponse
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestStreamEmitsFullEventSequence(t *testing.T) {
	srv, chat, sessions := newStreamServer(t)
	_, err := sessions.CreateWithID(context.Background(), "sess-1", persona.TypeWebAssistant, nil, "")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/chat/stream?session_id=sess-1&message=test&token=tok-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readSSE(t, resp)
	require.Len(t, events, 6)

	require.Equal(t, "start", events[0].Event)
	require.Equal(t, "delta", events[1].Event)
	require.Equal(t, "It ", events[1].Content)
	require.Equal(t, "delta", events[2].Event)
	require.Equal(t, "works", events[2].Content)

	require.Equal(t, "ui_action", events[3].Event)
	var action map[string]any
	require.NoError(t, json.Unmarshal([]byte(events[3].Content), &action))
	require.Equal(t, "navigate", action["type"])

	require.Equal(t, "message", events[4].Event)
	require.Equal(t, "It works", events[4].Content)
	require.Equal(t, "end", events[5].Event)
	require.True(t, events[5].Finished)

	require.Equal(t, "tok-1", chat.lastRequest.AuthToken)
	require.Equal(t, "test", chat.lastRequest.UserMessage)
}

func TestStreamRequiresParameters(t *testing.T) {
	srv, _, _ := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/chat/stream?message=test")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/chat/stream?session_id=sess-1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamUnknownSession(t *testing.T) {
	srv, _, _ := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/chat/stream?session_id=missing&message=test")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
