package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antsa-au/haystack-service/internal/service/ai"
)

// promptContext extracts the system prompt extension blocks from a request
// context.
func promptContext(m map[string]any) ai.PromptContext {
	return ai.PromptContext{
		PageContext: contextString(m, "page_context"),
		UserInfo:    contextString(m, "user_info"),
		ClinicData:  contextString(m, "clinic_data"),
	}
}

// contextString reads a context key as a string, rendering scalars the
// frontend sends loosely typed.
func contextString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// contextStrings reads a list-valued context key, keeping string entries.
func contextStrings(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	switch list := m[key].(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// workspaceMemory summarizes remembered workspace selections as a hidden
// assistant turn so the model can resolve references like "that template"
// or "them" across turns.
func workspaceMemory(sessContext map[string]any) string {
	if sessContext == nil {
		return ""
	}

	var parts []string
	if selected := contextString(sessContext, "last_selected_template"); selected != "" {
		parts = append(parts, "Selected template: "+selected)
	}
	if labels := memoryLabels(sessContext["last_loaded_sessions"], "label", "title", "session_id"); len(labels) > 0 {
		parts = append(parts, "Loaded sessions: "+joinCapped(labels, 6))
	}
	if titles := memoryLabels(sessContext["last_generated_documents"], "title", "name", "document_id"); len(titles) > 0 {
		parts = append(parts, "Generated documents: "+joinCapped(titles, 6))
	}

	if len(parts) == 0 {
		return ""
	}
	return "[Internal Context] " + strings.Join(parts, " | ")
}

// memoryLabels extracts a display label per entry, trying keys in order.
func memoryLabels(v any, keys ...string) []string {
	var labels []string
	for _, item := range mapItems(v) {
		for _, key := range keys {
			value, ok := item[key]
			if !ok || value == nil {
				continue
			}
			if label := fmt.Sprint(value); label != "" {
				labels = append(labels, label)
				break
			}
		}
	}
	return labels
}

func joinCapped(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + "…"
}

func mapItems(v any) []map[string]any {
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// contextSummary condenses a mood and profile snapshot into the sentence
// block injected ahead of jAImee's first reply.
func contextSummary(data map[string]any) string {
	var parts []string

	if profile := resultMap(data["profile"]); profile != nil && !hasError(profile) {
		name := "the user"
		if v, ok := profile["name"].(string); ok && v != "" {
			name = v
		}
		if name != "Unknown Client" {
			parts = append(parts, "Client name: "+name)
		}

		var personal []string
		if v := fieldString(profile, "age"); v != "" {
			personal = append(personal, "age "+v)
		}
		if v := fieldString(profile, "gender"); v != "" {
			personal = append(personal, "gender: "+v)
		}
		if v := fieldString(profile, "occupation"); v != "" {
			personal = append(personal, "occupation: "+v)
		}
		if len(personal) > 0 {
			parts = append(parts, "Personal details: "+strings.Join(personal, ", "))
		}

		var account []string
		if v := fieldString(profile, "role"); v != "" {
			account = append(account, "role: "+v)
		}
		if v := fieldString(profile, "status"); v != "" {
			account = append(account, "status: "+v)
		}
		if len(account) > 0 {
			parts = append(parts, "Account: "+strings.Join(account, ", "))
		}

		if clinic := resultMap(profile["clinic_info"]); clinic != nil {
			if clinicName := fieldString(clinic, "name"); clinicName != "" {
				if tz := fieldString(clinic, "timezone"); tz != "" {
					parts = append(parts, fmt.Sprintf("Clinic: %s (%s)", clinicName, tz))
				} else {
					parts = append(parts, "Clinic: "+clinicName)
				}
			}
		}
	}

	if mood := resultMap(data["mood_data"]); mood != nil && !hasError(mood) {
		if summary := fieldString(mood, "mood_summary"); summary != "" && summary != "No recent mood tracking data found for this user" {
			parts = append(parts, "Mood status: "+summary)
		}

		if entry := resultMap(mood["last_mood_entry"]); entry != nil {
			if label := fieldString(entry, "mood_label"); label != "" {
				line := "Most recent mood: " + label
				if createdAt := fieldString(entry, "createdAt"); createdAt != "" {
					if when, err := time.Parse(time.RFC3339, createdAt); err == nil {
						line = fmt.Sprintf("Most recent mood: %s on %s", label, when.Format("January 02"))
					}
				}
				parts = append(parts, line)
			}
		}

		if total := intValue(mood["total_entries"]); total > 0 {
			parts = append(parts, fmt.Sprintf("Total mood entries: %d", total))
		}
	}

	if insights := resultMap(data["therapeutic_insights"]); len(insights) > 0 {
		if focus := stringItems(insights["therapeutic_focus_areas"]); len(focus) > 0 {
			parts = append(parts, "Focus areas: "+strings.Join(focus, ", "))
		}
		if approaches := stringItems(insights["suggested_approaches"]); len(approaches) > 0 {
			if len(approaches) > 2 {
				approaches = approaches[:2]
			}
			parts = append(parts, "Suggested approaches: "+strings.Join(approaches, "; "))
		}
	}

	if len(parts) == 0 {
		return "User context loaded but no specific data available."
	}
	return strings.Join(parts, ". ") + "."
}

func hasError(m map[string]any) bool {
	v, ok := m["error"]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) != ""
}

// fieldString renders a backend field for prompt text, skipping empty and
// zero values the way the payloads treat them as absent.
func fieldString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		if t == 0 {
			return ""
		}
		return strconv.Itoa(t)
	}
	return fmt.Sprint(v)
}

func stringItems(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}
