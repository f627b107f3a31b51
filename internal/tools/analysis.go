package tools

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/analysis/transcript"
)

func (r *Registry) registerAnalysisTools() {
	r.register(r.analyzeLoadedSessionTool())
}

func (r *Registry) analyzeLoadedSessionTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "analyze_loaded_session",
			Desc: "Analyze a currently loaded session for themes, topics, sentiment, key quotes, or summaries. Use this to answer user questions about session content.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {
					Type:     schema.String,
					Desc:     "Session ID to analyze (must be currently loaded in UI)",
					Required: true,
				},
				"analysis_type": {
					Type:     schema.String,
					Desc:     "Type of analysis to perform",
					Enum:     []string{"summary", "themes", "topics", "sentiment", "key_quotes", "comprehensive"},
					Required: true,
				},
				"specific_question": {
					Type: schema.String,
					Desc: "Optional: Specific question to answer about the session (e.g., 'What coping strategies were discussed?')",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			sessionID := args.String("session_id")
			analysisType := args.String("analysis_type")
			question := args.String("specific_question")

			// Models routinely pass a stale or truncated session ID. With a
			// single loaded session the intent is unambiguous, so correct it;
			// with several, ask for an exact ID instead of guessing.
			loadedIDs := r.loadedSessionIDs(ctx)
			target := sessionID
			if !slices.Contains(loadedIDs, sessionID) {
				switch {
				case len(loadedIDs) == 1:
					target = loadedIDs[0]
					log.Printf("[tools] analyze_loaded_session using loaded session %s instead of %s", target, sessionID)
				case len(loadedIDs) > 1:
					log.Printf("[tools] analyze_loaded_session: session %s not among loaded sessions", sessionID)
					return map[string]any{
						"session_id":    sessionID,
						"analysis_type": analysisType,
						"analysis_results": fmt.Sprintf("Session ID '%s' not found. Please use one of the loaded session IDs: %s",
							sessionID, strings.Join(loadedIDs, ", ")),
						"status":             "session_id_not_found",
						"available_sessions": loadedIDs,
					}, nil
				}
			}

			session, found := r.findLoadedSession(ctx, target)
			if !found {
				message := fmt.Sprintf("Session %s is not currently loaded in the UI or has no content.", target)
				if len(r.states.StateIDs(ctx)) == 0 {
					message = "No sessions currently loaded in the UI interface."
				}
				return map[string]any{
					"session_id":       target,
					"analysis_type":    analysisType,
					"analysis_results": fmt.Sprintf("Cannot analyze session: %s", message),
					"status":           "session_not_available",
				}, nil
			}

			content := session.Content
			clientName := session.ClientName
			if clientName == "" {
				clientName = "Unknown"
			}

			if strings.TrimSpace(content) == "" {
				return map[string]any{
					"session_id":       target,
					"analysis_type":    analysisType,
					"analysis_results": "Session content is empty - cannot perform analysis.",
					"status":           "no_content",
				}, nil
			}

			stats := transcript.Describe(content)
			stats.ClientName = clientName
			keywords := transcript.Keywords(content, 10)

			results := map[string]any{
				"basic_stats": stats,
				"keywords":    keywords,
			}
			switch strings.ToLower(analysisType) {
			case "summary", "overview":
				results["summary"] = transcript.Summarize(content)
			case "themes", "topics":
				results["potential_themes"] = transcript.Themes(keywords, 5)
			}
			if question != "" {
				results["question_response"] = transcript.AnswerQuestion(content, question)
			}

			return map[string]any{
				"session_id":        target,
				"analysis_type":     analysisType,
				"specific_question": nullable(question),
				"client_name":       clientName,
				"analysis_results":  results,
				"status":            "success",
			}, nil
		},
	}
}
