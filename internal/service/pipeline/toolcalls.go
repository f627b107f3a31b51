package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/tools"
)

// conversationTools receive the resolved client UUID in place of whatever
// short or stale identifier the model produced.
var conversationTools = map[string]bool{
	"get_latest_conversation":   true,
	"get_conversations":         true,
	"get_conversation_messages": true,
	"get_client_summary":        true,
}

// documentTools receive the user's message as generation instructions when
// the model supplies none, so phrasing like tone or format requests reaches
// the generator.
var documentTools = map[string]bool{
	"generate_document_auto":        true,
	"generate_document_from_loaded": true,
}

// loopState carries identifiers resolved earlier in the conversation so later
// tool calls can reuse them. Seeded from the session context and persisted
// back as values are found.
type loopState struct {
	lastFoundClientID string
	lastClientName    string
	lastAssignmentID  string
	lastSignature     string
}

// executeToolCalls runs each call the model planned and returns the tool
// messages to feed back. Consecutive duplicate calls are answered with an
// error instead of re-executing.
func (s *Service) executeToolCalls(ctx context.Context, req Request, p persona.Persona, inv *tools.Invocation, calls []schema.ToolCall, state *loopState, run *run) []*schema.Message {
	banners := s.bannersFor(p)
	results := make([]*schema.Message, 0, len(calls))

	for _, tc := range calls {
		name := tc.Function.Name
		args := tools.ParseArgs(tc.Function.Arguments)

		if documentTools[name] && req.UserMessage != "" && args.String("generation_instructions") == "" {
			log.Printf("[pipeline] injecting generation instructions for %s", name)
			args["generation_instructions"] = req.UserMessage
		}
		if conversationTools[name] {
			s.resolveClientID(ctx, req.SessionID, args, inv, state)
		}
		if name == "get_conversation_messages" {
			s.resolveAssignmentID(ctx, req.SessionID, args, inv, state)
		}

		signature := toolSignature(name, args)
		if signature != "" && signature == state.lastSignature {
			log.Printf("[pipeline] skipping duplicate tool call: %s", signature)
			results = append(results, schema.ToolMessage(`{"error":"duplicate tool call skipped"}`, tc.ID))
			continue
		}

		// A full client UUID in the arguments is worth remembering even
		// before the call runs.
		if cid := args.String("client_id"); validIdentifier(cid) {
			state.lastFoundClientID = cid
			s.persistContext(ctx, req.SessionID, map[string]any{"last_client_id": cid})
		}

		if banners {
			run.say(fmt.Sprintf("\n\n[tool] %s executing...\n\n", name))
		}

		env := s.registry.Execute(ctx, name, inv, args)
		state.lastSignature = signature

		var result any
		if env.Success {
			result = env.Result
		}
		rm := resultMap(result)
		embedded := ""
		if rm != nil {
			if v, ok := rm["error"]; ok && v != nil {
				embedded = fmt.Sprint(v)
			}
		}

		var toolContent string
		if env.Success && embedded == "" {
			if rm != nil && rm["ui_action"] != nil {
				notice, ok := rm["user_message"].(string)
				if !ok || notice == "" {
					notice = "Performing UI action..."
				}
				if banners {
					run.emit(fmt.Sprintf("\n[ui] %s\n", notice))
				}
				run.addActions(rm["ui_action"])
			}

			feedback := s.quickFeedback(ctx, req.SessionID, name, result, state)
			if banners {
				run.say(fmt.Sprintf("\n[tool] %s executed%s\n\n", name, feedback))
			}

			toolContent = encodeToolResult(result)
			if banners && s.cfg.ShowRawToolJSON {
				run.say(fmt.Sprintf("\n[tool] %s result: %s\n", name, toolContent))
			}

			s.persistToolMemory(ctx, req.SessionID, name, rm, args)
		} else {
			errorText := env.Error
			if errorText == "" {
				errorText = embedded
			}
			if errorText == "" {
				errorText = "Failed"
			}
			if banners {
				run.say(fmt.Sprintf("\n[tool] %s executed [error] %s\n\n", name, errorText))
			}

			failure := env.Error
			if failure == "" {
				failure = "Failed"
			}
			toolContent = encodeToolResult(map[string]any{"error": failure})
		}

		results = append(results, schema.ToolMessage(toolContent, tc.ID))
	}

	return results
}

// resolveClientID substitutes the full client UUID resolved earlier in the
// conversation, looking one up by the remembered client name when the model
// supplied a short or missing identifier.
func (s *Service) resolveClientID(ctx context.Context, sessionID string, args tools.Args, inv *tools.Invocation, state *loopState) {
	if state.lastFoundClientID != "" {
		args["client_id"] = state.lastFoundClientID
		return
	}

	cid := args.String("client_id")
	if validIdentifier(cid) || state.lastClientName == "" {
		return
	}

	lookup := s.registry.Execute(ctx, "search_clients", inv, tools.Args{"query": state.lastClientName, "limit": 1})
	if !lookup.Success {
		return
	}
	first := firstResult(lookup.Result)
	if first == nil {
		return
	}
	resolved, _ := first["client_id"].(string)
	if !validIdentifier(resolved) {
		return
	}

	state.lastFoundClientID = resolved
	args["client_id"] = resolved
	s.persistContext(ctx, sessionID, map[string]any{
		"last_client_id":   resolved,
		"last_client_name": state.lastClientName,
	})
}

// resolveAssignmentID fills a missing or invalid assignment_id from the
// conversation cache, falling back to the client's latest conversation.
func (s *Service) resolveAssignmentID(ctx context.Context, sessionID string, args tools.Args, inv *tools.Invocation, state *loopState) {
	if validIdentifier(args.String("assignment_id")) {
		return
	}
	if validIdentifier(state.lastAssignmentID) {
		args["assignment_id"] = state.lastAssignmentID
		return
	}

	clientID := args.String("client_id")
	if clientID == "" {
		clientID = state.lastFoundClientID
	}
	if clientID == "" {
		return
	}

	latest := s.registry.Execute(ctx, "get_latest_conversation", inv, tools.Args{"client_id": clientID, "message_limit": 50})
	if !latest.Success {
		return
	}
	rm := resultMap(latest.Result)
	if rm == nil {
		return
	}
	candidate, _ := rm["latest_assignment_id"].(string)
	if !validIdentifier(candidate) {
		return
	}

	args["assignment_id"] = candidate
	state.lastAssignmentID = candidate
	s.persistContext(ctx, sessionID, map[string]any{"last_assignment_id": candidate})
}

// quickFeedback builds the short status suffix for the executed banner and
// caches identifiers the result surfaced.
func (s *Service) quickFeedback(ctx context.Context, sessionID, name string, result any, state *loopState) string {
	switch name {
	case "search_clients":
		client := firstResult(result)
		if client == nil {
			break
		}
		clientName := "Client"
		if v, ok := client["name"].(string); ok && v != "" {
			clientName = v
		}
		if cid, ok := client["client_id"].(string); ok && validIdentifier(cid) {
			state.lastFoundClientID = cid
			s.persistContext(ctx, sessionID, map[string]any{
				"last_client_id":   cid,
				"last_client_name": clientName,
			})
		}
		return fmt.Sprintf(" - Found %s", clientName)

	case "get_client_summary":
		rm := resultMap(result)
		if rm == nil {
			break
		}
		clientName := "Client"
		if v, ok := rm["name"].(string); ok && v != "" {
			clientName = v
		}
		return fmt.Sprintf(" - Retrieved summary for %s", clientName)

	case "get_latest_conversation":
		rm := resultMap(result)
		if rm == nil {
			break
		}
		if candidate, ok := rm["latest_assignment_id"].(string); ok && validIdentifier(candidate) {
			state.lastAssignmentID = candidate
			s.persistContext(ctx, sessionID, map[string]any{"last_assignment_id": candidate})
		}

	case "get_conversations":
		rm := resultMap(result)
		if rm == nil {
			break
		}
		if first := firstResult(rm["conversations"]); first != nil {
			if candidate, ok := first["assignment_id"].(string); ok && validIdentifier(candidate) {
				state.lastAssignmentID = candidate
				s.persistContext(ctx, sessionID, map[string]any{"last_assignment_id": candidate})
			}
		}

	case "get_templates":
		rm := resultMap(result)
		if rm == nil {
			break
		}
		if count := intValue(rm["count"]); count > 0 {
			return fmt.Sprintf(" - Found %d templates", count)
		}
		return " - No templates found"
	}

	return " - Completed successfully"
}

// persistToolMemory stores workspace selections into the session context so
// follow-up turns can resolve references like "that template" or "them".
func (s *Service) persistToolMemory(ctx context.Context, sessionID, name string, rm map[string]any, args tools.Args) {
	switch name {
	case "set_selected_template":
		selected, _ := rm["template_name"].(string)
		if selected == "" {
			selected = args.String("template_name")
		}
		if selected != "" {
			s.persistContext(ctx, sessionID, map[string]any{"last_selected_template": selected})
		}

	case "load_multiple_sessions", "get_loaded_sessions":
		if rm == nil {
			return
		}
		loaded := rm["loaded_sessions"]
		if loaded == nil {
			loaded = rm["sessions"]
		}
		if listLen(loaded) > 0 {
			s.persistContext(ctx, sessionID, map[string]any{"last_loaded_sessions": loaded})
		}
	}
}

// persistContext merges updates into the session context, logging rather than
// failing the turn when the write does not stick.
func (s *Service) persistContext(ctx context.Context, sessionID string, updates map[string]any) {
	if err := s.sessions.UpdateContext(ctx, sessionID, updates); err != nil {
		log.Printf("[pipeline] failed to persist session context for %s: %v", sessionID, err)
	}
}

// toolSignature canonicalizes a call for duplicate detection. Map keys
// marshal in sorted order, so identical arguments always produce identical
// signatures.
func toolSignature(name string, args tools.Args) string {
	payload, err := json.Marshal(map[string]any{"name": name, "args": args})
	if err != nil {
		return name
	}
	return string(payload)
}

// normalizeToolCalls rebuilds streamed tool calls into the form sent back to
// the model: typed, with concrete arguments.
func normalizeToolCalls(calls []schema.ToolCall) []schema.ToolCall {
	out := make([]schema.ToolCall, len(calls))
	for i, tc := range calls {
		tc.Index = nil
		tc.Type = "function"
		if tc.Function.Arguments == "" {
			tc.Function.Arguments = "{}"
		}
		out[i] = tc
	}
	return out
}

// validIdentifier reports whether a value looks like a full backend UUID
// rather than a row number or truncated ID the model hallucinated.
func validIdentifier(v string) bool {
	return len(v) >= 30
}

func encodeToolResult(result any) string {
	payload, err := json.Marshal(result)
	if err != nil {
		return `{"error":"failed to encode tool result"}`
	}
	return string(payload)
}

func resultMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// firstResult returns the first element of a list result when it is a map.
func firstResult(v any) map[string]any {
	switch list := v.(type) {
	case []map[string]any:
		if len(list) > 0 {
			return list[0]
		}
	case []any:
		if len(list) > 0 {
			return resultMap(list[0])
		}
	}
	return nil
}

func listLen(v any) int {
	switch list := v.(type) {
	case []map[string]any:
		return len(list)
	case []any:
		return len(list)
	}
	return 0
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
