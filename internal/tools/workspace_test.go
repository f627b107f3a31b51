package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antsa-au/haystack-service/internal/analysis/transcript"
	"github.com/antsa-au/haystack-service/internal/model/uistate"
	uistateService "github.com/antsa-au/haystack-service/internal/service/uistate"
)

const sessionTranscript = "Practitioner: How has the anxiety been this week? " +
	"Client: The anxiety was rough on Monday but the breathing helped. " +
	"Practitioner: Which breathing exercise worked best for the anxiety?"

func loadWorkspace(t *testing.T, states *uistateService.Manager, workspaceID string, sessions []map[string]any) {
	t.Helper()
	states.Replace(context.Background(), workspaceID, uistate.State{
		"page_type":      "transcribe_page",
		"loadedSessions": sessions,
		"currentClient":  map[string]any{"clientId": "c-1", "clientName": "Emma Woods"},
	}, "")
}

func TestGetLoadedSessionsEmpty(t *testing.T) {
	registry, _ := newTestRegistry(t, "http://localhost:0")

	env := registry.Execute(context.Background(), "get_loaded_sessions", &Invocation{}, Args{})
	require.True(t, env.Success)

	result := env.Result.(map[string]any)
	require.Equal(t, "no_sessions_loaded", result["status"])
	require.Equal(t, 0, result["session_count"])
}

func TestGetLoadedSessionsSummarizesTabs(t *testing.T) {
	registry, states := newTestRegistry(t, "http://localhost:0")
	loadWorkspace(t, states, "ws-1", []map[string]any{
		{"sessionId": "s-1", "clientId": "c-1", "clientName": "Emma Woods", "content": strings.Repeat("a", 150)},
		{"sessionId": "s-2", "clientId": "c-1", "clientName": "Emma Woods"},
	})

	env := registry.Execute(context.Background(), "get_loaded_sessions", &Invocation{}, Args{})
	require.True(t, env.Success)

	result := env.Result.(map[string]any)
	require.Equal(t, "success", result["status"])
	require.Equal(t, 2, result["session_count"])

	summaries := result["loaded_sessions"].([]map[string]any)
	require.Equal(t, 1, summaries[0]["index"])
	require.Equal(t, true, summaries[0]["has_content"])
	require.Equal(t, strings.Repeat("a", 100)+"...", summaries[0]["content_preview"])
	require.Equal(t, false, summaries[1]["has_content"])

	client := result["current_client"].(uistate.CurrentClient)
	require.Equal(t, "Emma Woods", client.ClientName)
}

func TestGetSessionContent(t *testing.T) {
	registry, states := newTestRegistry(t, "http://localhost:0")
	loadWorkspace(t, states, "ws-1", []map[string]any{
		{"sessionId": "s-1", "clientId": "c-1", "clientName": "Emma Woods", "content": sessionTranscript},
	})

	env := registry.Execute(context.Background(), "get_session_content", &Invocation{}, Args{"session_id": "s-1"})
	require.True(t, env.Success)

	result := env.Result.(map[string]any)
	require.Equal(t, "success", result["status"])
	require.Equal(t, sessionTranscript, result["content"])
	require.Equal(t, "Emma Woods", result["client_name"])

	env = registry.Execute(context.Background(), "get_session_content", &Invocation{}, Args{"session_id": "s-404"})
	result = env.Result.(map[string]any)
	require.Equal(t, "session_not_found", result["status"])
	require.Contains(t, result["message"], "s-404")
}

func TestGetSessionContentNoWorkspaces(t *testing.T) {
	registry, _ := newTestRegistry(t, "http://localhost:0")

	env := registry.Execute(context.Background(), "get_session_content", &Invocation{}, Args{"session_id": "s-1"})
	result := env.Result.(map[string]any)
	require.Equal(t, "no_sessions_loaded", result["status"])
}

func TestAnalyzeLoadedSessionCorrectsSingleSessionID(t *testing.T) {
	registry, states := newTestRegistry(t, "http://localhost:0")
	loadWorkspace(t, states, "ws-1", []map[string]any{
		{"sessionId": "s-1", "clientId": "c-1", "clientName": "Emma Woods", "content": sessionTranscript},
	})

	env := registry.Execute(context.Background(), "analyze_loaded_session", &Invocation{}, Args{
		"session_id":    "totally-wrong",
		"analysis_type": "themes",
	})
	require.True(t, env.Success)

	result := env.Result.(map[string]any)
	require.Equal(t, "success", result["status"])
	require.Equal(t, "s-1", result["session_id"])

	analysis := result["analysis_results"].(map[string]any)
	stats := analysis["basic_stats"].(transcript.Stats)
	require.Equal(t, "Emma Woods", stats.ClientName)
	require.Positive(t, stats.TotalWords)

	keywords := analysis["keywords"].([]transcript.Keyword)
	require.Equal(t, "anxiety", keywords[0].Word)

	themes := analysis["potential_themes"].([]string)
	require.Contains(t, themes, "anxiety")
}

func TestAnalyzeLoadedSessionAmbiguousID(t *testing.T) {
	registry, states := newTestRegistry(t, "http://localhost:0")
	loadWorkspace(t, states, "ws-1", []map[string]any{
		{"sessionId": "s-1", "clientId": "c-1", "clientName": "Emma Woods", "content": sessionTranscript},
		{"sessionId": "s-2", "clientId": "c-1", "clientName": "Emma Woods", "content": sessionTranscript},
	})

	env := registry.Execute(context.Background(), "analyze_loaded_session", &Invocation{}, Args{
		"session_id":    "s-9",
		"analysis_type": "summary",
	})
	result := env.Result.(map[string]any)
	require.Equal(t, "session_id_not_found", result["status"])
	require.ElementsMatch(t, []string{"s-1", "s-2"}, result["available_sessions"])
}

func TestAnalyzeLoadedSessionNotAvailable(t *testing.T) {
	registry, _ := newTestRegistry(t, "http://localhost:0")

	env := registry.Execute(context.Background(), "analyze_loaded_session", &Invocation{}, Args{
		"session_id":    "s-1",
		"analysis_type": "summary",
	})
	result := env.Result.(map[string]any)
	require.Equal(t, "session_not_available", result["status"])
	require.Contains(t, result["analysis_results"], "Cannot analyze session")
}

func TestAnalyzeLoadedSessionAnswersQuestion(t *testing.T) {
	registry, states := newTestRegistry(t, "http://localhost:0")
	loadWorkspace(t, states, "ws-1", []map[string]any{
		{"sessionId": "s-1", "clientId": "c-1", "clientName": "Emma Woods", "content": sessionTranscript},
	})

	env := registry.Execute(context.Background(), "analyze_loaded_session", &Invocation{}, Args{
		"session_id":        "s-1",
		"analysis_type":     "comprehensive",
		"specific_question": "What helped with breathing?",
	})
	result := env.Result.(map[string]any)
	require.Equal(t, "success", result["status"])

	analysis := result["analysis_results"].(map[string]any)
	response := analysis["question_response"].(transcript.QuestionMatch)
	require.Positive(t, response.FoundMatches)
}

func TestGenerateDocumentUsesLoadedSessions(t *testing.T) {
	registry, states := newTestRegistry(t, "http://localhost:0")
	loadWorkspace(t, states, "ws-1", []map[string]any{
		{"sessionId": "s-1", "clientId": "c-1", "clientName": "Emma Woods", "content": sessionTranscript},
	})
	page := &uistate.PageContext{PageType: "transcribe_page"}

	env := registry.Execute(context.Background(), "generate_document_from_loaded", &Invocation{Page: page}, Args{
		"template_content": "# Session Note",
		"template_name":    "Session Note",
	})
	require.True(t, env.Success)

	result := env.Result.(map[string]any)
	require.Equal(t, "ui_action_requested", result["status"])

	payload := result["ui_action"].(map[string]any)["payload"].(map[string]any)
	require.Equal(t, "Session Note", payload["documentName"])

	sessions := payload["sessions"].([]any)
	require.Len(t, sessions, 1)
	require.Equal(t, "s-1", sessions[0].(map[string]any)["session_id"])
	require.Contains(t, result["user_message"], "using 1 loaded session(s)")
}

func TestGenerateDocumentWithoutPageContextSkipsWorkspace(t *testing.T) {
	registry, states := newTestRegistry(t, "http://localhost:0")
	loadWorkspace(t, states, "ws-1", []map[string]any{
		{"sessionId": "s-1", "clientId": "c-1", "clientName": "Emma Woods", "content": sessionTranscript},
	})

	env := registry.Execute(context.Background(), "generate_document_from_loaded", &Invocation{}, Args{
		"template_content": "# Session Note",
	})
	result := env.Result.(map[string]any)
	payload := result["ui_action"].(map[string]any)["payload"].(map[string]any)
	require.Empty(t, payload["sessions"])
	require.Equal(t, "Generated Document", payload["documentName"])
	require.Equal(t, "Template", payload["templateName"])
}
