package uistate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	model "github.com/antsa-au/haystack-service/internal/model/uistate"
	uistate "github.com/antsa-au/haystack-service/internal/service/uistate"
)

func TestReplaceStampsAndStoresState(t *testing.T) {
	m := uistate.NewManager(nil)
	ctx := context.Background()

	m.Replace(ctx, "ws-1", model.State{"page_type": "dashboard"}, "token-1")

	got := m.Get(ctx, "ws-1")
	require.Equal(t, "dashboard", got.PageType())
	require.NotEmpty(t, got.LastUpdated())
	require.Equal(t, "ws-1", got["session_id"])
	require.Equal(t, "token-1", m.AuthToken(ctx, "ws-1"))
}

func TestApplyIncrementalRejectsStaleUpdates(t *testing.T) {
	m := uistate.NewManager(nil)
	ctx := context.Background()

	ok := m.ApplyIncremental(ctx, "ws-1", map[string]any{"page_type": "clients_list"}, "2025-06-01T10:00:00Z")
	require.True(t, ok)

	ok = m.ApplyIncremental(ctx, "ws-1", map[string]any{"page_type": "dashboard"}, "2025-06-01T09:59:59Z")
	require.False(t, ok, "older timestamp must be rejected")

	got := m.Get(ctx, "ws-1")
	require.Equal(t, "clients_list", got.PageType())
	require.Equal(t, "2025-06-01T10:00:00Z", got.LastUpdated())
}

func TestApplyIncrementalMergesKeys(t *testing.T) {
	m := uistate.NewManager(nil)
	ctx := context.Background()

	m.ApplyIncremental(ctx, "ws-1", map[string]any{"page_type": "transcribe_page"}, "2025-06-01T10:00:00Z")
	m.ApplyIncremental(ctx, "ws-1", map[string]any{
		"currentClient": map[string]any{"clientId": "c1", "clientName": "John Doe"},
	}, "2025-06-01T10:00:01Z")

	got := m.Get(ctx, "ws-1")
	require.Equal(t, "transcribe_page", got.PageType())

	client, ok := got.CurrentClientSelection()
	require.True(t, ok)
	require.Equal(t, "John Doe", client.ClientName)
}

func TestCleanupRemovesStateAndToken(t *testing.T) {
	m := uistate.NewManager(nil)
	ctx := context.Background()

	m.Replace(ctx, "ws-1", model.State{"page_type": "dashboard"}, "token-1")
	m.Cleanup(ctx, "ws-1")

	require.Empty(t, m.Get(ctx, "ws-1"))
	require.Empty(t, m.AuthToken(ctx, "ws-1"))
}

func TestMostRecentPicksLatestWorkspace(t *testing.T) {
	m := uistate.NewManager(nil)
	ctx := context.Background()

	m.ApplyIncremental(ctx, "ws-old", map[string]any{"page_type": "dashboard"}, "2025-06-01T09:00:00Z")
	m.ApplyIncremental(ctx, "ws-new", map[string]any{"page_type": "transcribe_page"}, "2025-06-01T11:00:00Z")

	id, state := m.MostRecent(ctx)
	require.Equal(t, "ws-new", id)
	require.Equal(t, "transcribe_page", state.PageType())
}

func TestPageCapabilitiesIncludeBaseTools(t *testing.T) {
	m := uistate.NewManager(nil)

	caps := m.PageCapabilities("messages_page")
	require.Contains(t, caps, "search_clients")
	require.Contains(t, caps, "suggest_navigation")
	require.Contains(t, caps, "get_conversation_messages")

	caps = m.PageCapabilities("dashboard")
	require.Contains(t, caps, "search_clients")
	require.NotContains(t, caps, "load_session_direct")
}

func TestDeriveContextFromLoadedWorkspace(t *testing.T) {
	m := uistate.NewManager(nil)

	state := model.State{
		"page_url": "/live-transcribe",
		"loadedSessions": []any{
			map[string]any{"sessionId": "s1", "clientId": "c1", "clientName": "John Doe"},
		},
		"selectedTemplate": map[string]any{"templateId": "t1", "templateName": "SOAP Note", "templateContent": "..."},
	}

	pageCtx := m.DeriveContext(state)
	require.Equal(t, "transcribe_page", pageCtx.PageType)
	require.Equal(t, "Live Transcribe", pageCtx.PageDisplayName)
	require.Contains(t, pageCtx.Capabilities, "get_loaded_sessions")
	require.Contains(t, pageCtx.Capabilities, "analyze_loaded_session")
	require.Contains(t, pageCtx.Capabilities, "set_selected_template")
	require.Contains(t, pageCtx.Capabilities, "load_session_direct")

	// No duplicate capability entries even though several paths add the same tools.
	seen := map[string]int{}
	for _, c := range pageCtx.Capabilities {
		seen[c]++
		require.Equal(t, 1, seen[c], "capability %s duplicated", c)
	}
}

func TestDeriveContextUnknownPage(t *testing.T) {
	m := uistate.NewManager(nil)

	pageCtx := m.DeriveContext(model.State{})
	require.Equal(t, "unknown", pageCtx.PageType)
	require.Equal(t, "Unknown Page", pageCtx.PageDisplayName)
	require.NotContains(t, pageCtx.Capabilities, "load_session_direct")
}

func TestDisplayNameFallsBackToTitleCase(t *testing.T) {
	m := uistate.NewManager(nil)
	require.Equal(t, "Billing Page", m.DisplayName("billing_page"))
}

func TestPageContextAllows(t *testing.T) {
	ctx := &model.PageContext{PageType: "transcribe_page", Capabilities: []string{"load_session_direct"}}
	require.True(t, ctx.Allows("load_session_direct"))
	require.False(t, ctx.Allows("get_client_summary"))

	unknown := &model.PageContext{PageType: "unknown"}
	require.True(t, unknown.Allows("load_session_direct"), "unknown page must not gate tools")

	var missing *model.PageContext
	require.True(t, missing.Allows("anything"), "absent context must not gate tools")
}
