package docgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/platform"
)

const (
	// explorerModel is the model used for exploration and policy checks.
	// Cheaper and steadier than the persona model; exploration is planning,
	// not prose.
	explorerModel = "gpt-4o"

	// tokenBudget caps how much transcript the explorer may accumulate.
	tokenBudget = 60000
	// tokensPerSegment is the rough cost estimate used against the budget.
	tokensPerSegment = 75

	// maxAgentSteps bounds the exploration loop.
	maxAgentSteps = 50
)

// estimateTokens converts a segment count into the budget currency.
func estimateTokens(segments int) int {
	return segments * tokensPerSegment
}

// explorationContext accumulates what the explorer has retrieved so far.
// Exploration tools share it for the duration of one generation.
type explorationContext struct {
	segments []platform.Segment
	tokens   int
	explored []string
}

func (e *explorationContext) addSegments(segments []platform.Segment, sessionID string) {
	e.segments = append(e.segments, segments...)
	e.tokens += estimateTokens(len(segments))
	for _, id := range e.explored {
		if id == sessionID {
			return
		}
	}
	e.explored = append(e.explored, sessionID)
}

func (e *explorationContext) hasBudget(estimated int) bool {
	return e.tokens+estimated <= tokenBudget
}

// explorerSystemPrompt steers the exploration agent. The flow mirrors how a
// practitioner would skim a file: read the small ones whole, search the rest.
const explorerSystemPrompt = `You are an intelligent document generation agent. Your goal is to explore therapy sessions efficiently and build sufficient context to generate a comprehensive clinical document.

CORE PRINCIPLE: Be DECISIVE, not EXHAUSTIVE. Once you have the content, GENERATE.

EXPLORATION FLOW:

**Step 1: Count Sessions**
- How many sessions do I have?

**If 1-3 sessions (SIMPLE PATH):**
1. Pull each session fully, one by one
2. Read and understand the content
3. Once you've read all sessions → GENERATE IMMEDIATELY
4. DON'T search after pulling - you already have everything!

**If 4+ sessions (SMART PATH):**
1. Pull the OLDEST session first (usually has presenting problems)
2. Read and understand it thoroughly
3. Based on what the CLIENT discussed, generate 3-5 targeted search queries
   - Use natural language as if the client is speaking
   - Focus on their main concerns, symptoms, or presenting issues
4. Search OTHER sessions for those specific themes
5. Once you have good coverage → GENERATE

CRITICAL RULES:
- DON'T peek then pull then search the same session - that's redundant!
- DON'T do 30+ searches - you're creating duplicates!
- If you pulled a session fully, you already have it - move on!
- For 1-3 sessions: PULL → READ → GENERATE (no searching needed!)
- Quality over quantity: targeted context beats exhaustive searching

TOKEN BUDGET: 60,000 tokens max
- check_context_sufficiency() to monitor usage
- Once you understand the sessions, GENERATE

TOOLS:
1. peek_session(session_id, num_segments) - Quick preview (optional)
2. pull_full_session(session_id) - Get complete session
3. search_session(session_id, query, max_results) - Find specific content in OTHER sessions
4. check_context_sufficiency() - Check progress
5. generate_document() - You're done! (Call this when ready)

Remember: Be SMART, not EXHAUSTIVE. Once you have the content, GENERATE.`

// explorationToolInfos declares the tools bound to the explorer model.
func explorationToolInfos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: "peek_session",
			Desc: "Peek at the first N segments of a session to understand its size and content. Use this to quickly assess a session before deciding whether to pull it fully or search it semantically.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {
					Type:     schema.String,
					Desc:     "The ID of the session to peek at",
					Required: true,
				},
				"num_segments": {
					Type: schema.Integer,
					Desc: "Number of segments to retrieve from the start (default 100)",
				},
			}),
		},
		{
			Name: "search_session",
			Desc: "Semantically search within a specific session for relevant content. Use this when you know what themes or topics to look for in a large session.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {
					Type:     schema.String,
					Desc:     "The ID of the session to search",
					Required: true,
				},
				"query": {
					Type:     schema.String,
					Desc:     "Natural language query describing what to search for",
					Required: true,
				},
				"max_results": {
					Type: schema.Integer,
					Desc: "Maximum number of results to return (default 20)",
				},
			}),
		},
		{
			Name: "pull_full_session",
			Desc: "Retrieve all segments from a session. Use this for small sessions or when you need complete context.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"session_id": {
					Type:     schema.String,
					Desc:     "The ID of the session to pull completely",
					Required: true,
				},
			}),
		},
		{
			Name:        "check_context_sufficiency",
			Desc:        "Check if you have gathered sufficient context to generate a quality document. Returns information about accumulated segments, token usage, and coverage.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name:        "generate_document",
			Desc:        "Signal that you're ready to generate the document with the accumulated context. This is the final tool call that ends the exploration phase.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
	}
}

// explore runs the autonomous exploration loop and returns the accumulated
// transcript context. Tool failures are fed back to the model rather than
// aborting; the loop ends when the model calls generate_document or runs out
// of steps.
func (s *Service) explore(ctx context.Context, auth platform.Auth, req Request, emit ProgressFunc) (*explorationContext, error) {
	bound, err := s.model.WithTools(explorationToolInfos())
	if err != nil {
		return nil, fmt.Errorf("failed to bind exploration tools: %w", err)
	}

	ec := &explorationContext{}

	templatePreview := req.Template.Content
	if len(templatePreview) > 500 {
		templatePreview = templatePreview[:500] + "..."
	}
	initial := fmt.Sprintf(`Generate a clinical document using the template %q.

You have %d therapy session(s) to explore:
Session IDs: %s

Template Overview:
%s
[Full template will be provided during generation]

Your task:
1. Explore these sessions intelligently to understand their content
2. Build sufficient context to generate a comprehensive document
3. When confident you have enough information, call generate_document()

Start exploring!`, req.Template.Name, len(req.SessionIDs), strings.Join(req.SessionIDs, ", "), templatePreview)

	messages := []*schema.Message{
		schema.SystemMessage(explorerSystemPrompt),
		schema.UserMessage(initial),
	}

	for step := 0; step < maxAgentSteps; step++ {
		response, err := bound.Generate(ctx, messages,
			model.WithModel(explorerModel), model.WithTemperature(0.3))
		if err != nil {
			return ec, fmt.Errorf("explorer step %d failed: %w", step, err)
		}

		if thinking := strings.TrimSpace(response.Content); thinking != "" && !strings.HasPrefix(thinking, "{") {
			emit(Progress{Type: "agent_thinking", Stage: "agentic_exploration", Message: thinking})
		}

		if len(response.ToolCalls) == 0 {
			// The model answered in prose without finishing. Whatever was
			// gathered so far is the context.
			log.Printf("[docgen] explorer stopped without generate_document after %d steps", step+1)
			return ec, nil
		}

		messages = append(messages, response)
		for _, tc := range response.ToolCalls {
			if tc.Function.Name == "generate_document" {
				log.Printf("[docgen] explorer ready to generate: %d segments, %d tokens, %d sessions",
					len(ec.segments), ec.tokens, len(ec.explored))
				return ec, nil
			}
			result := s.runExplorationTool(ctx, auth, ec, tc.Function.Name, tc.Function.Arguments)
			messages = append(messages, schema.ToolMessage(result, tc.ID))
		}
	}

	log.Printf("[docgen] explorer hit the step limit with %d segments collected", len(ec.segments))
	return ec, nil
}

// runExplorationTool executes one exploration tool call and returns its JSON
// result for the conversation.
func (s *Service) runExplorationTool(ctx context.Context, auth platform.Auth, ec *explorationContext, name, rawArgs string) string {
	var args struct {
		SessionID   string `json:"session_id"`
		NumSegments int    `json:"num_segments"`
		Query       string `json:"query"`
		MaxResults  int    `json:"max_results"`
	}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return encodeExplorationResult(map[string]any{
				"success": false,
				"error":   "invalid arguments: " + err.Error(),
			})
		}
	}

	switch name {
	case "peek_session":
		return encodeExplorationResult(s.peekSession(ctx, auth, ec, args.SessionID, args.NumSegments))
	case "search_session":
		return encodeExplorationResult(s.searchSession(ctx, auth, ec, args.SessionID, args.Query, args.MaxResults))
	case "pull_full_session":
		return encodeExplorationResult(s.pullFullSession(ctx, auth, ec, args.SessionID))
	case "check_context_sufficiency":
		return encodeExplorationResult(checkContextSufficiency(ec))
	default:
		return encodeExplorationResult(map[string]any{
			"success": false,
			"error":   "unknown tool: " + name,
		})
	}
}

// peekSession retrieves the opening segments of a session via an unfiltered
// similarity search, giving the explorer a cheap look at size and content.
func (s *Service) peekSession(ctx context.Context, auth platform.Auth, ec *explorationContext, sessionID string, numSegments int) map[string]any {
	if numSegments <= 0 {
		numSegments = 100
	}

	segments, err := s.backend.SemanticSearch(ctx, auth, "session conversation", []string{sessionID}, numSegments, 0.0)
	if err != nil {
		log.Printf("[docgen] peek_session %s failed: %v", sessionID, err)
		return map[string]any{
			"success": false,
			"error":   err.Error(),
			"message": "Failed to peek session: " + err.Error(),
		}
	}

	previews := make([]string, 0, 10)
	for _, seg := range segments {
		if len(previews) == 10 {
			break
		}
		previews = append(previews, fmt.Sprintf("%s: %s", segmentSpeaker(seg), segmentText(seg)))
	}

	ec.addSegments(segments, sessionID)
	log.Printf("[docgen] explorer peeked at session %s: %d segments", sessionID, len(segments))

	return map[string]any{
		"success":            true,
		"session_id":         sessionID,
		"segments_retrieved": len(segments),
		"estimated_tokens":   estimateTokens(len(segments)),
		"preview_text":       strings.Join(previews, "\n"),
		"message":            fmt.Sprintf("Retrieved %d segments from session. Preview shows initial conversation content.", len(segments)),
	}
}

// searchSession runs a thresholded similarity search within one session.
func (s *Service) searchSession(ctx context.Context, auth platform.Auth, ec *explorationContext, sessionID, query string, maxResults int) map[string]any {
	if maxResults <= 0 {
		maxResults = 20
	}

	segments, err := s.backend.SemanticSearch(ctx, auth, query, []string{sessionID}, maxResults, 0.3)
	if err != nil {
		log.Printf("[docgen] search_session %s failed: %v", sessionID, err)
		return map[string]any{
			"success": false,
			"error":   err.Error(),
			"message": "Failed to search session: " + err.Error(),
		}
	}

	previews := make([]string, 0, 5)
	for _, seg := range segments {
		if len(previews) == 5 {
			break
		}
		text := segmentText(seg)
		if len(text) > 100 {
			text = text[:100]
		}
		previews = append(previews, fmt.Sprintf("[Score: %.2f] %s: %s...", segmentScore(seg), segmentSpeaker(seg), text))
	}

	ec.addSegments(segments, sessionID)
	log.Printf("[docgen] explorer searched session %s for %q: %d results", sessionID, query, len(segments))

	return map[string]any{
		"success":          true,
		"session_id":       sessionID,
		"query":            query,
		"segments_found":   len(segments),
		"segments_preview": strings.Join(previews, "\n"),
		"message":          fmt.Sprintf("Found %d relevant segments matching %q", len(segments), query),
	}
}

// pullFullSession fetches every segment of a session, refusing when it would
// blow the token budget.
func (s *Service) pullFullSession(ctx context.Context, auth platform.Auth, ec *explorationContext, sessionID string) map[string]any {
	segments, err := s.backend.SegmentsBySessions(ctx, auth, []string{sessionID}, fullSessionSegmentLimit)
	if err != nil {
		log.Printf("[docgen] pull_full_session %s failed: %v", sessionID, err)
		return map[string]any{
			"success": false,
			"error":   err.Error(),
			"message": "Failed to pull full session: " + err.Error(),
		}
	}

	estimated := estimateTokens(len(segments))
	if !ec.hasBudget(estimated) {
		return map[string]any{
			"success": false,
			"error":   "Token budget exceeded",
			"message": fmt.Sprintf("Pulling full session would exceed token budget (%d > %d)", ec.tokens+estimated, tokenBudget),
		}
	}

	ec.addSegments(segments, sessionID)
	log.Printf("[docgen] explorer pulled full session %s: %d segments, ~%d tokens", sessionID, len(segments), estimated)

	return map[string]any{
		"success":          true,
		"session_id":       sessionID,
		"total_segments":   len(segments),
		"estimated_tokens": estimated,
		"message":          fmt.Sprintf("Successfully retrieved all %d segments from session", len(segments)),
	}
}

// checkContextSufficiency reports gathering progress. The heuristic calls
// context sufficient once at least 50 segments are in hand and a fifth of
// the budget is spent.
func checkContextSufficiency(ec *explorationContext) map[string]any {
	budgetUsedPct := float64(ec.tokens) / float64(tokenBudget) * 100
	sufficient := len(ec.segments) >= 50 && budgetUsedPct >= 20

	recommendation := "Continue exploring to gather more context"
	if sufficient {
		recommendation = "You have sufficient context to generate the document"
	}

	return map[string]any{
		"total_segments_collected": len(ec.segments),
		"tokens_used":              ec.tokens,
		"token_budget":             tokenBudget,
		"token_budget_remaining":   tokenBudget - ec.tokens,
		"budget_used_percentage":   fmt.Sprintf("%.1f", budgetUsedPct),
		"sessions_explored":        len(ec.explored),
		"is_sufficient":            sufficient,
		"recommendation":           recommendation,
		"message": fmt.Sprintf("Collected %d segments using %d/%d tokens (%.1f%%) from %d sessions",
			len(ec.segments), ec.tokens, tokenBudget, budgetUsedPct, len(ec.explored)),
	}
}

func encodeExplorationResult(result map[string]any) string {
	payload, err := json.Marshal(result)
	if err != nil {
		return `{"success":false,"error":"failed to encode tool result"}`
	}
	return string(payload)
}

func segmentSpeaker(seg platform.Segment) string {
	if v, ok := seg["speaker"].(string); ok && v != "" {
		return v
	}
	return "Speaker"
}

func segmentText(seg platform.Segment) string {
	v, _ := seg["text"].(string)
	return v
}

func segmentScore(seg platform.Segment) float64 {
	v, _ := seg["similarity_score"].(float64)
	return v
}
