package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkspaceMemoryEmpty(t *testing.T) {
	require.Empty(t, workspaceMemory(nil))
	require.Empty(t, workspaceMemory(map[string]any{"unrelated": "x"}))
}

func TestWorkspaceMemoryFormatsSelections(t *testing.T) {
	memory := workspaceMemory(map[string]any{
		"last_selected_template": "Progress Note",
		"last_loaded_sessions": []any{
			map[string]any{"label": "Emma 12 Aug"},
			map[string]any{"title": "Emma 05 Aug"},
			map[string]any{"session_id": "sess-3"},
		},
		"last_generated_documents": []any{
			map[string]any{"name": "Progress Note 12 Aug"},
		},
	})

	require.Equal(t, "[Internal Context] Selected template: Progress Note | Loaded sessions: Emma 12 Aug, Emma 05 Aug, sess-3 | Generated documents: Progress Note 12 Aug", memory)
}

func TestWorkspaceMemoryCapsSessionList(t *testing.T) {
	sessions := make([]any, 8)
	for i := range sessions {
		sessions[i] = map[string]any{"label": fmt.Sprintf("s-%d", i+1)}
	}

	memory := workspaceMemory(map[string]any{"last_loaded_sessions": sessions})

	require.Equal(t, "[Internal Context] Loaded sessions: s-1, s-2, s-3, s-4, s-5, s-6…", memory)
}

func TestWorkspaceMemoryLabelFallsThroughEmptyValues(t *testing.T) {
	memory := workspaceMemory(map[string]any{
		"last_loaded_sessions": []any{map[string]any{"label": "", "title": "Emma 12 Aug"}},
	})

	require.Equal(t, "[Internal Context] Loaded sessions: Emma 12 Aug", memory)
}

func TestContextSummaryFullProfile(t *testing.T) {
	summary := contextSummary(map[string]any{
		"profile": map[string]any{
			"name":       "Alex Chen",
			"age":        float64(29),
			"gender":     "female",
			"occupation": "teacher",
			"role":       "client",
			"status":     "active",
			"clinic_info": map[string]any{
				"name":     "Northside Clinic",
				"timezone": "Australia/Sydney",
			},
		},
		"mood_data": map[string]any{
			"mood_summary": "Mostly positive this fortnight",
			"last_mood_entry": map[string]any{
				"mood_label": "Calm",
				"createdAt":  "2025-08-05T09:30:00Z",
			},
			"total_entries": float64(14),
		},
		"therapeutic_insights": map[string]any{
			"therapeutic_focus_areas": []any{"sleep", "anxiety"},
			"suggested_approaches":    []any{"CBT", "mindfulness", "journaling"},
		},
	})

	require.Equal(t, "Client name: Alex Chen. "+
		"Personal details: age 29, gender: female, occupation: teacher. "+
		"Account: role: client, status: active. "+
		"Clinic: Northside Clinic (Australia/Sydney). "+
		"Mood status: Mostly positive this fortnight. "+
		"Most recent mood: Calm on August 05. "+
		"Total mood entries: 14. "+
		"Focus areas: sleep, anxiety. "+
		"Suggested approaches: CBT; mindfulness.", summary)
}

func TestContextSummarySkipsUnknownClientAndErrors(t *testing.T) {
	summary := contextSummary(map[string]any{
		"profile": map[string]any{"name": "Unknown Client"},
		"mood_data": map[string]any{
			"error":        "mood service unavailable",
			"mood_summary": "ignored",
		},
	})

	require.Equal(t, "User context loaded but no specific data available.", summary)
}

func TestContextSummaryIgnoresNoDataSentinel(t *testing.T) {
	summary := contextSummary(map[string]any{
		"mood_data": map[string]any{
			"mood_summary":  "No recent mood tracking data found for this user",
			"total_entries": float64(0),
		},
	})

	require.Equal(t, "User context loaded but no specific data available.", summary)
}

func TestContextSummaryMoodWithoutTimestamp(t *testing.T) {
	summary := contextSummary(map[string]any{
		"mood_data": map[string]any{
			"last_mood_entry": map[string]any{"mood_label": "Anxious"},
		},
	})

	require.Equal(t, "Most recent mood: Anxious.", summary)
}

func TestContextStringRendersScalars(t *testing.T) {
	m := map[string]any{
		"page_context": "transcribe_page",
		"count":        float64(3),
		"flag":         true,
		"missing":      nil,
	}

	require.Equal(t, "transcribe_page", contextString(m, "page_context"))
	require.Equal(t, "3", contextString(m, "count"))
	require.Equal(t, "true", contextString(m, "flag"))
	require.Equal(t, "", contextString(m, "missing"))
	require.Equal(t, "", contextString(nil, "anything"))
}
