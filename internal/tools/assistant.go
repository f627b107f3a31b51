package tools

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudwego/eino/schema"
)

// registerAssistantTools wires the practice-management tools: backend
// lookups, report generation, and navigation hints.
func (r *Registry) registerAssistantTools() {
	r.register(r.clientSummaryTool())
	r.register(r.searchClientsTool())
	r.register(r.generateReportTool())
	r.register(r.conversationsTool())
	r.register(r.conversationMessagesTool())
	r.register(r.latestConversationTool())
	r.register(r.searchSessionsTool())
	r.register(r.loadSessionTool())
	r.register(r.validateSessionsTool())
	r.register(r.analyzeSessionContentTool())
	r.register(r.templatesTool())
	r.register(r.suggestNavigationTool())
	r.register(r.navigateToPageTool())
}

// nullable keeps optional echo fields null instead of empty strings so the
// model can tell "not given" from "given but blank".
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *Registry) clientSummaryTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "get_client_summary",
			Desc: "Get a detailed non-conversation summary of client information including recent sessions, notes, and treatment progress. Requires a client_id. If you only have a client name, use search_clients first to get the client_id. Do NOT use this for conversations or chat transcripts — for those use get_latest_conversation, get_conversations, or get_conversation_messages.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"client_id": {
					Type:     schema.String,
					Desc:     "The unique identifier for the client (required). Must be a UUID returned by search_clients/get_conversations.",
					Required: true,
				},
				"include_recent_sessions": {
					Type: schema.Boolean,
					Desc: "Whether to include recent session data",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			clientID := args.String("client_id")
			if clientID == "" {
				return map[string]any{"error": "client_id is required", "status": "Invalid Request"}, nil
			}

			params := url.Values{}
			params.Set("client_id", clientID)
			params.Set("include_recent_sessions", strconv.FormatBool(args.Bool("include_recent_sessions", true)))

			data, err := r.backend.Get(ctx, inv.Auth, "haystack/client-summary", params)
			if err != nil {
				log.Printf("[tools] get_client_summary: %v", err)
				return map[string]any{
					"client_id":          clientID,
					"name":               "Client (API Error)",
					"status":             "Unknown",
					"error":              fmt.Sprintf("Failed to fetch client data: %v", err),
					"last_session":       nil,
					"treatment_progress": "Unable to retrieve progress data",
					"recent_sessions":    nil,
					"notes":              "Error accessing client information",
				}, nil
			}

			resp := asMap(data)
			return map[string]any{
				"client_id":          pick(resp, "client_id", clientID),
				"name":               pick(resp, "name", "Unknown Client"),
				"status":             pick(resp, "status", "Unknown"),
				"last_session":       resp["last_session"],
				"treatment_progress": pick(resp, "treatment_progress", "No progress data available"),
				"recent_sessions":    resp["recent_sessions"],
				"notes":              pick(resp, "notes", "No additional notes"),
				"age":                resp["age"],
				"gender":             resp["gender"],
				"occupation":         resp["occupation"],
				"diagnosis":          resp["diagnosis"],
				"medication":         resp["medication"],
				"assignment_stats":   pick(resp, "assignment_stats", map[string]any{}),
				"last_activity":      resp["last_activity"],
			}, nil
		},
	}
}

func (r *Registry) searchClientsTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "search_clients",
			Desc: "Search for clients by name or ID to obtain a client_id for subsequent calls (e.g., get_client_summary or conversation tools).",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "Search query (name, ID, etc.)",
					Required: true,
				},
				"limit": {
					Type: schema.Integer,
					Desc: "Maximum number of results to return",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			query := args.String("query")

			params := url.Values{}
			params.Set("query", query)
			params.Set("limit", strconv.Itoa(args.Int("limit", 10)))

			data, err := r.backend.Get(ctx, inv.Auth, "haystack/search-clients", params)
			if err != nil {
				log.Printf("[tools] search_clients: %v", err)
				return []map[string]any{{
					"client_id":    "error",
					"name":         fmt.Sprintf("Search Error for '%s'", query),
					"status":       "Error",
					"error":        fmt.Sprintf("Failed to search: %v", err),
					"last_session": nil,
				}}, nil
			}

			clients, _ := asMap(data)["clients"].([]any)
			results := make([]map[string]any, 0, len(clients))
			for _, item := range clients {
				client, ok := item.(map[string]any)
				if !ok {
					continue
				}
				results = append(results, map[string]any{
					"client_id":          client["client_id"],
					"name":               pick(client, "name", "Unknown Client"),
					"status":             pick(client, "status", "Unknown"),
					"last_session":       client["last_session"],
					"last_activity":      client["last_activity"],
					"active_assignments": pick(client, "active_assignments", 0),
					"total_assignments":  pick(client, "total_assignments", 0),
					"recent_messages":    pick(client, "recent_messages", 0),
					"age":                client["age"],
					"gender":             client["gender"],
					"occupation":         client["occupation"],
				})
			}
			return results, nil
		},
	}
}

func (r *Registry) generateReportTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "generate_report",
			Desc: "Generate various types of reports (session summaries, treatment progress, etc.)",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"report_type": {
					Type:     schema.String,
					Desc:     "Type of report to generate",
					Enum:     []string{"session_summary", "treatment_progress", "billing_summary"},
					Required: true,
				},
				"client_id": {
					Type:     schema.String,
					Desc:     "Client ID for the report",
					Required: true,
				},
				"date_range": {
					Type: schema.Object,
					Desc: "Optional date range for the report",
					SubParams: map[string]*schema.ParameterInfo{
						"start_date": {Type: schema.String, Desc: "Start date (YYYY-MM-DD)"},
						"end_date":   {Type: schema.String, Desc: "End date (YYYY-MM-DD)"},
					},
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			reportType := args.String("report_type")
			clientID := args.String("client_id")
			dateRange := args.Map("date_range")

			body := map[string]any{
				"report_type": reportType,
				"client_id":   clientID,
			}
			if dateRange != nil {
				body["date_range"] = dateRange
			}

			data, err := r.backend.Post(ctx, inv.Auth, "haystack/generate-report", body)
			if err != nil {
				log.Printf("[tools] generate_report: %v", err)
				return map[string]any{
					"report_type":  reportType,
					"client_id":    clientID,
					"generated_at": time.Now().UTC().Format(time.RFC3339),
					"summary":      fmt.Sprintf("Error generating %s report for client %s", reportType, clientID),
					"error":        fmt.Sprintf("Failed to generate report: %v", err),
					"data":         map[string]any{"error": "Report generation failed"},
				}, nil
			}

			resp := asMap(data)
			var rangeEcho any = dateRange
			if dateRange == nil {
				rangeEcho = nil
			}
			return map[string]any{
				"report_type":  pick(resp, "report_type", reportType),
				"client_id":    pick(resp, "client_id", clientID),
				"generated_at": pick(resp, "generated_at", time.Now().UTC().Format(time.RFC3339)),
				"summary":      pick(resp, "summary", fmt.Sprintf("%s report generated successfully", reportType)),
				"data":         pick(resp, "data", map[string]any{}),
				"date_range":   pick(resp, "date_range", rangeEcho),
			}, nil
		},
	}
}

func (r *Registry) conversationsTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "get_conversations",
			Desc: "Get all conversation threads (homework assignments) for a client. Use when the user asks to see all chats/threads with Jaimee.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"client_id": {
					Type:     schema.String,
					Desc:     "Client ID to get conversations for (UUID returned by search_clients)",
					Required: true,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			clientID := args.String("client_id")
			if clientID == "" {
				return map[string]any{"error": "client_id is required", "status": "Invalid Request"}, nil
			}

			params := url.Values{}
			params.Set("client_id", clientID)

			data, err := r.backend.Get(ctx, inv.Auth, "haystack/conversations", params)
			if err != nil {
				log.Printf("[tools] get_conversations: %v", err)
				return map[string]any{
					"client_id":     clientID,
					"client_name":   "Unknown Client",
					"error":         fmt.Sprintf("Failed to get conversations: %v", err),
					"conversations": []any{},
					"total":         0,
				}, nil
			}

			resp := asMap(data)
			return map[string]any{
				"client_id":     pick(resp, "client_id", clientID),
				"client_name":   pick(resp, "client_name", "Unknown Client"),
				"conversations": pick(resp, "conversations", []any{}),
				"total":         pick(resp, "total", 0),
			}, nil
		},
	}
}

func (r *Registry) conversationMessagesTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "get_conversation_messages",
			Desc: "Get messages from a specific conversation thread with Jaimee (requires assignment_id). Use after listing conversations if the user wants a particular thread.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"client_id": {
					Type:     schema.String,
					Desc:     "Client ID (UUID returned by search_clients)",
					Required: true,
				},
				"assignment_id": {
					Type:     schema.String,
					Desc:     "Assignment ID (conversation thread ID, UUID returned by get_conversations/get_latest_conversation)",
					Required: true,
				},
				"limit": {
					Type: schema.Integer,
					Desc: "Maximum number of messages to return",
				},
				"offset": {
					Type: schema.Integer,
					Desc: "Number of messages to skip (for pagination)",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			clientID := args.String("client_id")
			assignmentID := args.String("assignment_id")
			if clientID == "" || assignmentID == "" {
				return map[string]any{"error": "client_id and assignment_id are required", "status": "Invalid Request"}, nil
			}

			params := url.Values{}
			params.Set("client_id", clientID)
			params.Set("assignment_id", assignmentID)
			params.Set("limit", strconv.Itoa(args.Int("limit", 100)))
			params.Set("offset", strconv.Itoa(args.Int("offset", 0)))

			data, err := r.backend.Get(ctx, inv.Auth, "haystack/conversation-messages", params)
			if err != nil {
				log.Printf("[tools] get_conversation_messages: %v", err)
				return map[string]any{
					"assignment_id":  assignmentID,
					"client_id":      clientID,
					"client_name":    "Unknown Client",
					"homework_title": "Unknown Assignment",
					"error":          fmt.Sprintf("Failed to get conversation messages: %v", err),
					"messages":       []any{},
					"total_messages": 0,
				}, nil
			}

			resp := asMap(data)
			return map[string]any{
				"assignment_id":      pick(resp, "assignment_id", assignmentID),
				"client_id":          pick(resp, "client_id", clientID),
				"client_name":        pick(resp, "client_name", "Unknown Client"),
				"homework_title":     pick(resp, "homework_title", "Unknown Assignment"),
				"messages":           pick(resp, "messages", []any{}),
				"total_messages":     pick(resp, "total_messages", 0),
				"first_message_date": resp["first_message_date"],
				"last_message_date":  resp["last_message_date"],
			}, nil
		},
	}
}

func (r *Registry) latestConversationTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "get_latest_conversation",
			Desc: "Get the latest conversation between a client and Jaimee AI assistant (recent chat/messages). Use for queries like 'latest chat', 'recent messages', 'what did they talk about'.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"client_id": {
					Type:     schema.String,
					Desc:     "Client ID to get latest conversation for (UUID returned by search_clients)",
					Required: true,
				},
				"message_limit": {
					Type: schema.Integer,
					Desc: "Maximum number of recent messages to return",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			clientID := args.String("client_id")
			if clientID == "" {
				return map[string]any{"error": "client_id is required", "status": "Invalid Request"}, nil
			}

			params := url.Values{}
			params.Set("client_id", clientID)
			params.Set("message_limit", strconv.Itoa(args.Int("message_limit", 50)))

			data, err := r.backend.Get(ctx, inv.Auth, "haystack/latest-conversation", params)
			if err != nil {
				log.Printf("[tools] get_latest_conversation: %v", err)
				return map[string]any{
					"client_id":       clientID,
					"client_name":     "Unknown Client",
					"error":           fmt.Sprintf("Failed to get latest conversation: %v", err),
					"recent_messages": []any{},
					"message_count":   0,
				}, nil
			}

			resp := asMap(data)
			return map[string]any{
				"client_id":            pick(resp, "client_id", clientID),
				"client_name":          pick(resp, "client_name", "Unknown Client"),
				"latest_assignment_id": resp["latest_assignment_id"],
				"homework_title":       resp["homework_title"],
				"recent_messages":      pick(resp, "recent_messages", []any{}),
				"message_count":        pick(resp, "message_count", 0),
				"last_activity":        resp["last_activity"],
			}, nil
		},
	}
}

func (r *Registry) searchSessionsTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "search_sessions",
			Desc: "Search for transcription sessions by client name, date range, or keywords. Use for queries like 'John's latest session', 'sessions from last week', 'find sessions about anxiety'.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"client_name": {
					Type: schema.String,
					Desc: "Name of the client to search sessions for",
				},
				"client_id": {
					Type: schema.String,
					Desc: "Client ID to search sessions for (UUID)",
				},
				"date_from": {
					Type: schema.String,
					Desc: "Start date for date range filter (YYYY-MM-DD)",
				},
				"date_to": {
					Type: schema.String,
					Desc: "End date for date range filter (YYYY-MM-DD)",
				},
				"keywords": {
					Type: schema.String,
					Desc: "Keywords to search for in session content",
				},
				"limit": {
					Type: schema.Integer,
					Desc: "Maximum number of sessions to return",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			clientName := args.String("client_name")
			clientID := args.String("client_id")
			dateFrom := args.String("date_from")
			dateTo := args.String("date_to")
			keywords := args.String("keywords")

			params := url.Values{}
			params.Set("limit", strconv.Itoa(args.Int("limit", 10)))
			for key, value := range map[string]string{
				"client_name": clientName,
				"client_id":   clientID,
				"date_from":   dateFrom,
				"date_to":     dateTo,
				"keywords":    keywords,
			} {
				if value != "" {
					params.Set(key, value)
				}
			}

			data, err := r.backend.Get(ctx, inv.Auth, "haystack/search-sessions", params)
			if err != nil {
				log.Printf("[tools] search_sessions: %v", err)
				return map[string]any{
					"sessions": []any{},
					"total":    0,
					"error":    fmt.Sprintf("Failed to search sessions: %v", err),
					"search_criteria": map[string]any{
						"client_name": nullable(clientName),
						"client_id":   nullable(clientID),
						"keywords":    nullable(keywords),
					},
				}, nil
			}

			var dateRange any
			if dateFrom != "" && dateTo != "" {
				dateRange = fmt.Sprintf("%s to %s", dateFrom, dateTo)
			}

			resp := asMap(data)
			return map[string]any{
				"sessions": pick(resp, "sessions", []any{}),
				"total":    pick(resp, "total", 0),
				"search_criteria": map[string]any{
					"client_name": nullable(clientName),
					"client_id":   nullable(clientID),
					"date_range":  dateRange,
					"keywords":    nullable(keywords),
				},
			}, nil
		},
	}
}

func (r *Registry) loadSessionTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "load_session",
			Desc: "Load a specific session with its transcript segments. Returns session details and transcript content for analysis.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {
					Type:     schema.String,
					Desc:     "Session ID to load (returned by search_sessions)",
					Required: true,
				},
				"client_id": {
					Type:     schema.String,
					Desc:     "Client ID that owns this session",
					Required: true,
				},
				"include_segments": {
					Type: schema.Boolean,
					Desc: "Whether to include detailed transcript segments",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			sessionID := args.String("session_id")
			clientID := args.String("client_id")
			if sessionID == "" || clientID == "" {
				return map[string]any{"error": "session_id and client_id are required", "status": "Invalid Request"}, nil
			}
			includeSegments := args.Bool("include_segments", true)

			params := url.Values{}
			params.Set("client_id", clientID)
			params.Set("include_segments", strconv.FormatBool(includeSegments))

			data, err := r.backend.Get(ctx, inv.Auth, "haystack/sessions/"+sessionID, params)
			if err != nil {
				log.Printf("[tools] load_session: %v", err)
				return map[string]any{
					"session_id": sessionID,
					"client_id":  clientID,
					"error":      fmt.Sprintf("Failed to load session: %v", err),
					"status":     "error",
				}, nil
			}

			resp := asMap(data)
			segments := any([]any{})
			if includeSegments {
				segments = pick(resp, "segments", []any{})
			}
			return map[string]any{
				"session_id":         pick(resp, "session_id", sessionID),
				"client_id":          pick(resp, "client_id", clientID),
				"client_name":        pick(resp, "client_name", "Unknown Client"),
				"recording_date":     resp["recording_date"],
				"duration":           resp["duration"],
				"total_segments":     pick(resp, "total_segments", 0),
				"average_confidence": resp["average_confidence"],
				"segments":           segments,
				"metadata":           pick(resp, "metadata", map[string]any{}),
				"status":             "loaded",
			}, nil
		},
	}
}

func (r *Registry) validateSessionsTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "validate_sessions",
			Desc: "Validate that sessions have available transcript content before loading. Use this before load_session_direct or load_multiple_sessions to avoid 404 errors.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"sessions": {
					Type:     schema.Array,
					Desc:     "Array of session objects to validate",
					Required: true,
					ElemInfo: &schema.ParameterInfo{
						Type: schema.Object,
						SubParams: map[string]*schema.ParameterInfo{
							"session_id": {Type: schema.String, Desc: "Session ID to validate", Required: true},
							"client_id":  {Type: schema.String, Desc: "Client ID that owns this session", Required: true},
						},
					},
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			sessions := args.List("sessions")
			if len(sessions) == 0 {
				return map[string]any{"error": "At least one session is required", "status": "Invalid Request"}, nil
			}

			valid := make([]any, 0, len(sessions))
			invalid := make([]map[string]any, 0)

			for _, item := range sessions {
				session := asMap(item)
				sessionID, _ := session["session_id"].(string)
				clientID, _ := session["client_id"].(string)

				if sessionID == "" || clientID == "" {
					invalid = append(invalid, map[string]any{
						"session_id": session["session_id"],
						"error":      "Missing session_id or client_id",
					})
					continue
				}

				params := url.Values{}
				params.Set("clientId", clientID)
				data, err := r.backend.Get(ctx, inv.Auth, "ai/transcriptions/"+sessionID, params)
				switch {
				case err != nil:
					log.Printf("[tools] validate_sessions: session %s: %v", sessionID, err)
					invalid = append(invalid, map[string]any{
						"session_id": sessionID,
						"error":      fmt.Sprintf("Transcript not accessible: %v", err),
					})
				case data == nil:
					invalid = append(invalid, map[string]any{
						"session_id": sessionID,
						"error":      "No transcript data found",
					})
				default:
					valid = append(valid, item)
				}
			}

			return map[string]any{
				"valid_sessions":   valid,
				"invalid_sessions": invalid,
				"total_checked":    len(sessions),
				"valid_count":      len(valid),
				"invalid_count":    len(invalid),
				"all_valid":        len(invalid) == 0,
				"status":           "validation_complete",
			}, nil
		},
	}
}

func (r *Registry) analyzeSessionContentTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "analyze_session_content",
			Desc: "Analyze session content for themes, sentiment, key topics, and insights. Use after loading a session.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {
					Type:     schema.String,
					Desc:     "Session ID to analyze",
					Required: true,
				},
				"client_id": {
					Type:     schema.String,
					Desc:     "Client ID that owns this session",
					Required: true,
				},
				"analysis_type": {
					Type: schema.String,
					Desc: "Type of analysis to perform",
					Enum: []string{"summary", "sentiment", "topics", "themes", "comprehensive"},
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			sessionID := args.String("session_id")
			clientID := args.String("client_id")
			if sessionID == "" || clientID == "" {
				return map[string]any{"error": "session_id and client_id are required", "status": "Invalid Request"}, nil
			}
			analysisType := args.StringDefault("analysis_type", "comprehensive")

			data, err := r.backend.Post(ctx, inv.Auth, "haystack/sessions/"+sessionID+"/analyze", map[string]any{
				"client_id":     clientID,
				"analysis_type": analysisType,
			})
			if err != nil {
				log.Printf("[tools] analyze_session_content: %v", err)
				return map[string]any{
					"session_id":    sessionID,
					"analysis_type": analysisType,
					"error":         fmt.Sprintf("Failed to analyze session: %v", err),
					"status":        "error",
				}, nil
			}

			resp := asMap(data)
			return map[string]any{
				"session_id":         pick(resp, "session_id", sessionID),
				"analysis_type":      analysisType,
				"summary":            pick(resp, "summary", ""),
				"key_topics":         pick(resp, "key_topics", []any{}),
				"sentiment_analysis": pick(resp, "sentiment_analysis", map[string]any{}),
				"themes":             pick(resp, "themes", []any{}),
				"insights":           pick(resp, "insights", []any{}),
				"recommendations":    pick(resp, "recommendations", []any{}),
				"word_count":         pick(resp, "word_count", 0),
				"speaker_breakdown":  pick(resp, "speaker_breakdown", map[string]any{}),
				"confidence_score":   pick(resp, "confidence_score", 0.0),
				"status":             "analyzed",
			}, nil
		},
	}
}

func (r *Registry) templatesTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "get_templates",
			Desc: "Get all available document templates from the API for template selection and document generation",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"template_type": {
					Type: schema.String,
					Desc: "Filter templates by type",
					Enum: []string{"all", "private", "clinic", "public"},
				},
				"search_query": {
					Type: schema.String,
					Desc: "Optional search query to filter templates by name or description",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			templateType := args.StringDefault("template_type", "all")
			searchQuery := args.String("search_query")

			params := url.Values{}
			switch templateType {
			case "all", "private", "clinic", "public":
				params.Set("type", templateType)
			}
			if searchQuery != "" {
				params.Set("q", searchQuery)
			}

			data, err := r.backend.Get(ctx, inv.Auth, "templates", params)
			if err != nil {
				log.Printf("[tools] get_templates: %v", err)
				return map[string]any{
					"templates": []any{},
					"count":     0,
					"error":     fmt.Sprintf("Failed to get templates: %v", err),
					"status":    "error",
				}, nil
			}

			var items []any
			switch v := data.(type) {
			case []any:
				items = v
			case map[string]any:
				items, _ = v["data"].([]any)
			}
			if len(items) == 0 {
				return map[string]any{
					"templates": []any{},
					"count":     0,
					"status":    "no_templates_found",
				}, nil
			}

			formatted := make([]map[string]any, 0, len(items))
			for _, item := range items {
				tpl, ok := item.(map[string]any)
				if !ok {
					continue
				}
				formatted = append(formatted, map[string]any{
					"id":          tpl["id"],
					"name":        tpl["name"],
					"description": pick(tpl, "description", ""),
					"content":     pick(tpl, "content", ""),
					"tags":        pick(tpl, "tags", []any{}),
					"isPrivate":   pick(tpl, "isPrivate", false),
					"clinicId":    tpl["clinicId"],
					"createdBy":   tpl["createdBy"],
					"usageCount":  pick(tpl, "usageCount", 0),
				})
			}
			log.Printf("[tools] get_templates retrieved %d templates", len(formatted))

			return map[string]any{
				"templates": formatted,
				"count":     len(formatted),
				"status":    "success",
			}, nil
		},
	}
}

func (r *Registry) suggestNavigationTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "suggest_navigation",
			Desc: "Suggest navigation to user when current page doesn't support requested action. Use when page validation fails.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"current_page": {
					Type:     schema.String,
					Desc:     "Current page type the user is on",
					Required: true,
				},
				"suggested_page": {
					Type:     schema.String,
					Desc:     "Page type that supports the requested action",
					Required: true,
				},
				"reason": {
					Type:     schema.String,
					Desc:     "Why navigation is needed",
					Required: true,
				},
				"required_for_action": {
					Type:     schema.String,
					Desc:     "What action requires this navigation",
					Required: true,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			currentPage := args.String("current_page")
			suggestedPage := args.String("suggested_page")
			reason := args.String("reason")
			requiredFor := args.String("required_for_action")

			return map[string]any{
				"current_page":        currentPage,
				"suggested_page":      suggestedPage,
				"reason":              reason,
				"required_for_action": requiredFor,
				"ui_action": map[string]any{
					"type": "suggest_navigation",
					"payload": map[string]any{
						"current_page":        currentPage,
						"suggested_page":      suggestedPage,
						"reason":              reason,
						"required_for_action": requiredFor,
					},
				},
				"status":       "ui_action_requested",
				"user_message": fmt.Sprintf("To %s, you'll need to navigate from %s to %s. %s", requiredFor, currentPage, suggestedPage, reason),
			}, nil
		},
	}
}

func (r *Registry) navigateToPageTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "navigate_to_page",
			Desc: "Navigate user to a specific page (use sparingly, prefer suggesting navigation). Only use when user explicitly requests navigation.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"page_url": {
					Type:     schema.String,
					Desc:     "Target page URL path",
					Required: true,
				},
				"page_type": {
					Type:     schema.String,
					Desc:     "Type of page to navigate to",
					Required: true,
				},
				"params": {
					Type: schema.Object,
					Desc: "URL parameters to include",
				},
				"reason": {
					Type:     schema.String,
					Desc:     "Why navigation is needed",
					Required: true,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			pageURL := args.String("page_url")
			pageType := args.String("page_type")
			reason := args.String("reason")
			if pageURL == "" || pageType == "" {
				return map[string]any{"error": "page_url and page_type are required", "status": "Invalid Request"}, nil
			}

			urlParams := args.Map("params")
			if urlParams == nil {
				urlParams = map[string]any{}
			}

			return map[string]any{
				"page_url":  pageURL,
				"page_type": pageType,
				"reason":    reason,
				"params":    urlParams,
				"ui_action": map[string]any{
					"type": "navigate_to_page",
					"payload": map[string]any{
						"page_url":  pageURL,
						"page_type": pageType,
						"params":    urlParams,
						"reason":    reason,
					},
				},
				"status":       "ui_action_requested",
				"user_message": fmt.Sprintf("Navigating to %s. %s", pageType, reason),
			}, nil
		},
	}
}
