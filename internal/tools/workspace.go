package tools

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/model/uistate"
)

// registerWorkspaceTools wires the tools that act on the frontend workspace:
// they emit UI actions instead of calling the backend, and they refuse to run
// on pages that cannot honor the action.
func (r *Registry) registerWorkspaceTools() {
	r.register(r.setClientSelectionTool())
	r.register(r.loadSessionDirectTool())
	r.register(r.loadMultipleSessionsTool())
	r.register(r.setSelectedTemplateTool())
	r.register(r.generateDocumentFromLoadedTool())
	r.register(r.loadedSessionsTool())
	r.register(r.sessionContentTool())
}

// sessionsPageLink is the clickable redirect offered when a workspace action
// needs the live-transcribe page.
func sessionsPageLink() map[string]any {
	return map[string]any{
		"text":      "Go to Sessions Page",
		"url":       "/live-transcribe",
		"page_type": "transcribe_page",
	}
}

// findLoadedSession scans every workspace for a loaded tab with this session
// ID and non-empty content.
func (r *Registry) findLoadedSession(ctx context.Context, sessionID string) (uistate.LoadedSession, bool) {
	for _, id := range r.states.StateIDs(ctx) {
		for _, session := range r.states.Get(ctx, id).LoadedSessions() {
			if session.SessionID == sessionID && session.Content != "" {
				return session, true
			}
		}
	}
	return uistate.LoadedSession{}, false
}

// loadedSessionIDs lists the session IDs loaded across all workspaces.
func (r *Registry) loadedSessionIDs(ctx context.Context) []string {
	var ids []string
	for _, id := range r.states.StateIDs(ctx) {
		for _, session := range r.states.Get(ctx, id).LoadedSessions() {
			if session.SessionID != "" {
				ids = append(ids, session.SessionID)
			}
		}
	}
	return ids
}

func (r *Registry) setClientSelectionTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "set_client_selection",
			Desc: "Set the client selection in the UI (like selecting from AutoComplete). Call this FIRST before loading any sessions.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"client_name": {
					Type:     schema.String,
					Desc:     "Client name to select in the UI",
					Required: true,
				},
				"client_id": {
					Type:     schema.String,
					Desc:     "Client ID to select in the UI",
					Required: true,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			clientName := args.String("client_name")
			clientID := args.String("client_id")
			if clientName == "" || clientID == "" {
				return map[string]any{"error": "client_name and client_id are required", "status": "Invalid Request"}, nil
			}

			if !inv.Page.Allows("set_client_selection") {
				log.Printf("[tools] blocking set_client_selection on page %q", inv.Page.PageType)
				return map[string]any{
					"client_name":     clientName,
					"client_id":       clientID,
					"status":          "navigation_required",
					"user_message":    fmt.Sprintf("To select '%s' and load their sessions, you need to be on the Sessions page. Please click the link below:", clientName),
					"navigation_link": sessionsPageLink(),
					"instructions":    fmt.Sprintf("Once you're on the Sessions page, ask me again to load %s's sessions and I'll be able to help!", clientName),
				}, nil
			}

			return map[string]any{
				"client_name": clientName,
				"client_id":   clientID,
				"ui_action": map[string]any{
					"type":   "set_client_selection",
					"target": "live_transcribe_page",
					"payload": map[string]any{
						"clientName": clientName,
						"clientId":   clientID,
					},
				},
				"status":       "ui_action_requested",
				"user_message": fmt.Sprintf("Selected client '%s' in the interface.", clientName),
			}, nil
		},
	}
}

func (r *Registry) loadSessionDirectTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "load_session_direct",
			Desc: "Load a session directly using existing UI logic (like clicking Load Session button). Call AFTER setting client selection.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {
					Type:     schema.String,
					Desc:     "Session ID to load",
					Required: true,
				},
				"client_id": {
					Type:     schema.String,
					Desc:     "Client ID that owns this session",
					Required: true,
				},
				"client_name": {
					Type:     schema.String,
					Desc:     "Client name for the session",
					Required: true,
				},
				"recording_date": {
					Type:     schema.String,
					Desc:     "ISO date string of when the session was recorded",
					Required: true,
				},
				"duration": {
					Type:     schema.Number,
					Desc:     "Duration of the session in seconds",
					Required: true,
				},
				"total_segments": {
					Type:     schema.Integer,
					Desc:     "Total number of transcript segments",
					Required: true,
				},
				"average_confidence": {
					Type:     schema.Number,
					Desc:     "Average confidence score of the transcript",
					Required: true,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			sessionID := args.String("session_id")
			clientID := args.String("client_id")
			clientName := args.String("client_name")
			if sessionID == "" || clientID == "" || clientName == "" {
				return map[string]any{"error": "session_id, client_id, and client_name are required", "status": "Invalid Request"}, nil
			}

			if !inv.Page.Allows("load_session_direct") {
				log.Printf("[tools] blocking load_session_direct on page %q", inv.Page.PageType)
				return map[string]any{
					"session_id":      sessionID,
					"client_id":       clientID,
					"status":          "navigation_required",
					"user_message":    fmt.Sprintf("To load sessions for '%s', you need to be on the Sessions page. Please click the link below:", clientName),
					"navigation_link": sessionsPageLink(),
					"instructions":    fmt.Sprintf("Once you're on the Sessions page, ask me again to load %s's sessions and I'll be able to help!", clientName),
				}, nil
			}

			return map[string]any{
				"session_id": sessionID,
				"client_id":  clientID,
				"ui_action": map[string]any{
					"type":   "load_session_direct",
					"target": "live_transcribe_page",
					"payload": map[string]any{
						"sessionId":         sessionID,
						"clientId":          clientID,
						"clientName":        clientName,
						"recordingDate":     args.String("recording_date"),
						"duration":          args.Float("duration", 0),
						"totalSegments":     args.Int("total_segments", 0),
						"averageConfidence": args.Float("average_confidence", 0),
					},
				},
				"status":       "ui_action_requested",
				"user_message": fmt.Sprintf("Loading session for '%s' into a new tab. The session will appear shortly.", clientName),
			}, nil
		},
	}
}

func (r *Registry) loadMultipleSessionsTool() Tool {
	sessionItem := &schema.ParameterInfo{
		Type: schema.Object,
		SubParams: map[string]*schema.ParameterInfo{
			"session_id":         {Type: schema.String, Desc: "Session ID to load", Required: true},
			"client_id":          {Type: schema.String, Desc: "Client ID that owns this session", Required: true},
			"client_name":        {Type: schema.String, Desc: "Client name for the session", Required: true},
			"recording_date":     {Type: schema.String, Desc: "ISO date string of when the session was recorded", Required: true},
			"duration":           {Type: schema.Number, Desc: "Duration of the session in seconds", Required: true},
			"total_segments":     {Type: schema.Integer, Desc: "Total number of transcript segments", Required: true},
			"average_confidence": {Type: schema.Number, Desc: "Average confidence score of the transcript", Required: true},
		},
	}

	return Tool{
		Info: &schema.ToolInfo{
			Name: "load_multiple_sessions",
			Desc: "Load multiple sessions as separate tabs in the UI. Use when user requests to load several sessions at once (e.g. 'load session 1 and 3'). Call AFTER setting client selection.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"sessions": {
					Type:     schema.Array,
					Desc:     "Array of session objects to load",
					Required: true,
					ElemInfo: sessionItem,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			sessions := args.List("sessions")
			if len(sessions) == 0 {
				return map[string]any{"error": "At least one session is required", "status": "Invalid Request"}, nil
			}

			// The page gate matches load_session_direct: loading tabs is the
			// same UI capability whether one session or several.
			if !inv.Page.Allows("load_session_direct") {
				log.Printf("[tools] blocking load_multiple_sessions on page %q", inv.Page.PageType)
				first := asMap(sessions[0])
				clientName, _ := first["client_name"].(string)
				return map[string]any{
					"sessions_count":  len(sessions),
					"status":          "navigation_required",
					"user_message":    fmt.Sprintf("To load sessions for '%s', you need to be on the Sessions page. Please click the link below:", clientName),
					"navigation_link": sessionsPageLink(),
					"instructions":    fmt.Sprintf("Once you're on the Sessions page, ask me again to load %s's sessions and I'll be able to help!", clientName),
				}, nil
			}

			uiActions := make([]map[string]any, 0, len(sessions))
			sessionNames := make([]string, 0, len(sessions))

			for _, item := range sessions {
				session := asMap(item)
				sessionID, _ := session["session_id"].(string)
				clientID, _ := session["client_id"].(string)
				clientName, _ := session["client_name"].(string)
				recordingDate, _ := session["recording_date"].(string)

				if sessionID == "" || clientID == "" || clientName == "" {
					continue
				}

				uiActions = append(uiActions, map[string]any{
					"type":   "load_session_direct",
					"target": "live_transcribe_page",
					"payload": map[string]any{
						"sessionId":         sessionID,
						"clientId":          clientID,
						"clientName":        clientName,
						"recordingDate":     session["recording_date"],
						"duration":          pick(session, "duration", 0),
						"totalSegments":     pick(session, "total_segments", 0),
						"averageConfidence": pick(session, "average_confidence", 0.0),
					},
				})

				dateStr := "unknown date"
				if recordingDate != "" {
					dateStr = strings.SplitN(recordingDate, "T", 2)[0]
				}
				sessionNames = append(sessionNames, fmt.Sprintf("%s (%s)", clientName, dateStr))
			}

			if len(uiActions) == 0 {
				return map[string]any{"error": "No valid sessions found to load", "status": "Invalid Request"}, nil
			}

			return map[string]any{
				"sessions_count": len(uiActions),
				"ui_action":      uiActions,
				"status":         "ui_action_requested",
				"user_message": fmt.Sprintf("Loading %d sessions into new tabs: %s. The sessions will appear shortly.",
					len(uiActions), strings.Join(sessionNames, ", ")),
			}, nil
		},
	}
}

func (r *Registry) setSelectedTemplateTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "set_selected_template",
			Desc: "Set the active template in the UI for document generation (like clicking on a template in the templates modal)",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"template_id": {
					Type:     schema.String,
					Desc:     "The unique identifier for the template",
					Required: true,
				},
				"template_name": {
					Type:     schema.String,
					Desc:     "The name of the template",
					Required: true,
				},
				"template_content": {
					Type:     schema.String,
					Desc:     "The template content/body text",
					Required: true,
				},
				"template_description": {
					Type: schema.String,
					Desc: "Description of the template",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			templateID := args.String("template_id")
			templateName := args.String("template_name")

			if !inv.Page.Allows("set_selected_template") {
				log.Printf("[tools] blocking set_selected_template on page %q", inv.Page.PageType)
				return map[string]any{
					"template_id":     templateID,
					"template_name":   templateName,
					"status":          "navigation_required",
					"user_message":    fmt.Sprintf("To select the '%s' template, you need to be on the Sessions page. Please click the link below:", templateName),
					"navigation_link": sessionsPageLink(),
					"instructions":    fmt.Sprintf("Once you're on the Sessions page, ask me again to select the %s template and I'll be able to help!", templateName),
				}, nil
			}

			return map[string]any{
				"template_id":   templateID,
				"template_name": templateName,
				"ui_action": map[string]any{
					"type":   "set_selected_template",
					"target": "live_transcribe_page",
					"payload": map[string]any{
						"templateId":          templateID,
						"templateName":        templateName,
						"templateContent":     args.String("template_content"),
						"templateDescription": args.String("template_description"),
					},
				},
				"status":       "ui_action_requested",
				"user_message": fmt.Sprintf("Selected template '%s' for document generation. You can now generate documents using this template.", templateName),
			}, nil
		},
	}
}

func (r *Registry) generateDocumentFromLoadedTool() Tool {
	sessionItem := &schema.ParameterInfo{
		Type: schema.Object,
		SubParams: map[string]*schema.ParameterInfo{
			"session_id":  {Type: schema.String},
			"client_id":   {Type: schema.String},
			"client_name": {Type: schema.String},
			"metadata":    {Type: schema.Object},
		},
	}

	return Tool{
		Info: &schema.ToolInfo{
			Name: "generate_document_from_loaded",
			Desc: "Generate a document in the UI using the provided template content and sessions currently loaded in the interface.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"template_content": {
					Type:     schema.String,
					Desc:     "The full template text to use for generation",
					Required: true,
				},
				"template_name": {
					Type: schema.String,
					Desc: "Optional template name for display",
				},
				"document_name": {
					Type: schema.String,
					Desc: "Optional target document name",
				},
				"sessions": {
					Type:     schema.Array,
					Desc:     "Optional array of sessions. If omitted, the tool will use sessions currently loaded in the UI",
					ElemInfo: sessionItem,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			templateName := args.String("template_name")

			selected := args.List("sessions")
			if len(selected) == 0 {
				selected = []any{}
				if inv.Page != nil {
					_, state := r.states.MostRecent(ctx)
					for _, session := range state.LoadedSessions() {
						if session.SessionID == "" {
							continue
						}
						metadata := session.Metadata
						if metadata == nil {
							metadata = map[string]any{}
						}
						selected = append(selected, map[string]any{
							"session_id":  session.SessionID,
							"client_id":   session.ClientID,
							"client_name": session.ClientName,
							"metadata":    metadata,
						})
					}
				}
			}

			payloadName := templateName
			if payloadName == "" {
				payloadName = "Template"
			}
			documentName := args.String("document_name")
			if documentName == "" {
				documentName = templateName
			}
			if documentName == "" {
				documentName = "Generated Document"
			}

			return map[string]any{
				"ui_action": map[string]any{
					"type":   "generate_document_from_loaded",
					"target": "live_transcribe_page",
					"payload": map[string]any{
						"templateContent": args.String("template_content"),
						"templateName":    payloadName,
						"documentName":    documentName,
						"sessions":        selected,
					},
				},
				"status": "ui_action_requested",
				"user_message": fmt.Sprintf("Generating document '%s' using %d loaded session(s). It will open as a new tab shortly.",
					documentName, len(selected)),
			}, nil
		},
	}
}

func (r *Registry) loadedSessionsTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name:        "get_loaded_sessions",
			Desc:        "Get list of sessions currently loaded in the UI that user can ask questions about. Use this to see what session content is available for analysis.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			workspaceID, state := r.states.MostRecent(ctx)
			if workspaceID == "" {
				return map[string]any{
					"loaded_sessions": []any{},
					"session_count":   0,
					"message":         "No sessions currently loaded in the UI interface.",
					"status":          "no_sessions_loaded",
				}, nil
			}

			loaded := state.LoadedSessions()
			summaries := make([]map[string]any, 0, len(loaded))
			for i, session := range loaded {
				sessionID := session.SessionID
				if sessionID == "" {
					sessionID = "unknown"
				}
				clientName := session.ClientName
				if clientName == "" {
					clientName = "Unknown Client"
				}
				clientID := session.ClientID
				if clientID == "" {
					clientID = "unknown"
				}
				metadata := session.Metadata
				if metadata == nil {
					metadata = map[string]any{}
				}

				preview := session.Content
				if runes := []rune(preview); len(runes) > 100 {
					preview = string(runes[:100]) + "..."
				}

				summaries = append(summaries, map[string]any{
					"index":           i + 1,
					"session_id":      sessionID,
					"client_name":     clientName,
					"client_id":       clientID,
					"has_content":     session.Content != "",
					"content_preview": preview,
					"metadata":        metadata,
				})
			}

			var currentClient any
			if client, ok := state.CurrentClientSelection(); ok {
				currentClient = client
			}
			log.Printf("[tools] get_loaded_sessions found %d loaded sessions", len(loaded))

			return map[string]any{
				"loaded_sessions": summaries,
				"session_count":   len(loaded),
				"current_client":  currentClient,
				"message":         fmt.Sprintf("Found %d session(s) currently loaded in the UI.", len(loaded)),
				"status":          "success",
			}, nil
		},
	}
}

func (r *Registry) sessionContentTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "get_session_content",
			Desc: "Get the full transcript content of a specific loaded session for analysis. Use this to access session content for answering user questions.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {
					Type:     schema.String,
					Desc:     "Session ID to get content for (must be currently loaded in UI)",
					Required: true,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			sessionID := args.String("session_id")

			if len(r.states.StateIDs(ctx)) == 0 {
				return map[string]any{
					"session_id": sessionID,
					"content":    "",
					"message":    "No sessions currently loaded in the UI interface.",
					"status":     "no_sessions_loaded",
				}, nil
			}

			session, found := r.findLoadedSession(ctx, sessionID)
			if !found {
				return map[string]any{
					"session_id": sessionID,
					"content":    "",
					"message":    fmt.Sprintf("Session %s is not currently loaded in the UI or has no content.", sessionID),
					"status":     "session_not_found",
				}, nil
			}

			clientName := session.ClientName
			if clientName == "" {
				clientName = "Unknown"
			}
			clientID := session.ClientID
			if clientID == "" {
				clientID = "unknown"
			}
			metadata := session.Metadata
			if metadata == nil {
				metadata = map[string]any{}
			}

			return map[string]any{
				"session_id":     sessionID,
				"content":        session.Content,
				"client_name":    clientName,
				"client_id":      clientID,
				"metadata":       metadata,
				"content_length": utf8.RuneCountInString(session.Content),
				"status":         "success",
			}, nil
		},
	}
}
