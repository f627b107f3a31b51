package docgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/antsa-au/haystack-service/internal/platform"
)

// scriptedChatModel plays back canned responses, one per Generate call, and
// records the messages each call received.
type scriptedChatModel struct {
	responses []*schema.Message
	err       error
	calls     [][]*schema.Message
}

func (m *scriptedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls = append(m.calls, input)
	if len(m.responses) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return response, nil
}

func (m *scriptedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	response, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{response}), nil
}

func (m *scriptedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func explorerToolCall(id, name, arguments string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: arguments},
	}
}

func testAuth() platform.Auth {
	return platform.Auth{Token: "test-token", ProfileID: "prof-1"}
}

func testRequest(sessionIDs ...string) Request {
	return Request{
		Template:         Template{ID: "tpl-1", Name: "Session Notes", Content: "## Session Notes\n\nSummary:"},
		SessionIDs:       sessionIDs,
		ClientInfo:       Person{ID: "client-1", Name: "Alice Walker"},
		PractitionerInfo: Person{ID: "prac-1", Name: "Dr. Reyes"},
	}
}

func newTestService(t *testing.T, backendURL string, chatModel model.ToolCallingChatModel) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), platform.New(backendURL), chatModel, Config{SkipPolicyCheck: true})
	require.NoError(t, err)
	return svc
}

// segmentBackend serves the transcript endpoints the generator touches.
func segmentBackend(t *testing.T, totalSegments int, segments []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/v1/ai/transcriptions/"):
			json.NewEncoder(w).Encode(map[string]any{
				"totalSegments": totalSegments,
				"duration":      1800,
			})
		case r.URL.Path == "/api/v1/ai/transcripts/segments-by-sessions":
			json.NewEncoder(w).Encode(map[string]any{"segments": segments})
		case r.URL.Path == "/api/v1/ai/semantic-search":
			json.NewEncoder(w).Encode(map[string]any{"segments": segments})
		default:
			http.NotFound(w, r)
		}
	}))
}

func sampleSegments(n int) []map[string]any {
	segments := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		segments = append(segments, map[string]any{
			"speaker":    "Alice",
			"text":       "I have been sleeping better this week.",
			"start_time": float64(i * 30),
		})
	}
	return segments
}

func TestStripSafetyInstructions(t *testing.T) {
	template := "Document the session using the headings below, covering presenting concerns and interventions discussed.\n\nInclude a plan for the next session."
	wrapped := safetyInstructionMarker + "\n- NEVER provide diagnoses\n- NEVER prescribe medication\n\n" + template

	require.Equal(t, template, stripSafetyInstructions(wrapped))
	require.Equal(t, template, stripSafetyInstructions(template))
}

func TestParsePolicyVerdict(t *testing.T) {
	verdict, err := parsePolicyVerdict(`Sure, here is the classification:
{"is_violation": true, "violation_type": "diagnosis_request", "reason": "asks for a DSM-5 determination", "confidence": "high"}`)
	require.NoError(t, err)
	require.True(t, verdict.IsViolation)
	require.Equal(t, "diagnosis_request", verdict.ViolationType)
	require.Equal(t, "high", verdict.Confidence)

	_, err = parsePolicyVerdict("no json here")
	require.Error(t, err)
}

func TestPolicyCheckerFailsOpen(t *testing.T) {
	// No model bound: the checker must allow rather than block generation.
	checker, err := newPolicyChecker(context.Background(), nil)
	require.NoError(t, err)

	verdict := checker.Check(context.Background(), "Diagnose the client with depression.")
	require.False(t, verdict.IsViolation)
}

func TestViolationDocumentShape(t *testing.T) {
	req := testRequest("sess-1")
	doc := violationDocument(policyVerdict{
		IsViolation:   true,
		ViolationType: "diagnosis_request",
		Reason:        "requests diagnostic criteria",
		Confidence:    "high",
	}, req, "2026-08-27T00:00:00Z")

	require.Contains(t, doc.Content, "CONTENT POLICY VIOLATION DETECTED")
	require.Contains(t, doc.Content, "www.ANTSA.com.au")
	require.Contains(t, doc.Content, "Reason: requests diagnostic criteria")
	require.Equal(t, "policy_violation_detected", doc.Metadata["processingMethod"])
	require.Equal(t, true, doc.Metadata["flagged"])
}

func TestBuildTranscriptGroupsByPurpose(t *testing.T) {
	segments := []platform.Segment{
		{"speaker": "Alice", "text": "I feel anxious at work.", "start_time": float64(65), "_search_purpose": "Work stress"},
		{"speaker": "Dr. Reyes", "text": "Tell me more.", "start_time": "125.5", "_search_purpose": "Work stress"},
		{"speaker": "Alice", "text": "Hello.", "startTime": float64(0)},
	}

	transcript := buildTranscript(segments)
	require.Contains(t, transcript, "--- Session Content ---")
	require.Contains(t, transcript, "--- Work stress ---")
	require.Contains(t, transcript, "[01:05] Alice: I feel anxious at work.")
	require.Contains(t, transcript, "[02:05] Dr. Reyes: Tell me more.")
	require.Contains(t, transcript, "[00:00] Alice: Hello.")

	// Untargeted content renders before search sections.
	require.Less(t, strings.Index(transcript, "Session Content"), strings.Index(transcript, "Work stress"))
}

func TestContextSourceNote(t *testing.T) {
	require.Contains(t, contextSourceNote(nil), "No session transcript content is available")

	fallback := []platform.Segment{{"_search_query": "All segments (fallback)", "text": "hi"}}
	require.Contains(t, contextSourceNote(fallback), "Semantic search found no relevant matches")

	targeted := []platform.Segment{{"_search_query": "anxiety", "text": "hi"}}
	require.Contains(t, contextSourceNote(targeted), "intelligently retrieved")
}

func TestGenerateFromContextPersonalizesPrompt(t *testing.T) {
	chatModel := &scriptedChatModel{responses: []*schema.Message{
		schema.AssistantMessage("# Session Notes\n\nAlice Walker reported improved sleep.", nil),
	}}
	svc := newTestService(t, "http://localhost:0", chatModel)

	req := testRequest("sess-1")
	req.GenerationInstructions = "Use British spelling."
	doc, err := svc.GenerateFromContext(context.Background(), []platform.Segment{
		{"speaker": "Alice", "text": "I slept well.", "start_time": float64(10)},
	}, req)
	require.NoError(t, err)

	require.Contains(t, doc.Content, "Alice Walker")
	require.Equal(t, "Session Notes", doc.Metadata["templateName"])
	require.Equal(t, 1, doc.Metadata["segmentsUsed"])
	require.NotZero(t, doc.Metadata["wordCount"])

	require.Len(t, chatModel.calls, 1)
	prompt := chatModel.calls[0]
	require.Equal(t, schema.System, prompt[0].Role)
	require.Contains(t, prompt[0].Content, "NEVER provide, suggest, or imply any medical diagnoses")
	require.Contains(t, prompt[0].Content, "Use British spelling.")
	require.Contains(t, prompt[1].Content, "**Client:** Alice Walker")
	require.Contains(t, prompt[1].Content, "**Practitioner:** Dr. Reyes")
	require.Contains(t, prompt[1].Content, "[00:10] Alice: I slept well.")
}

func TestGenerateFromContextRegeneration(t *testing.T) {
	chatModel := &scriptedChatModel{responses: []*schema.Message{
		schema.AssistantMessage("updated document", nil),
	}}
	svc := newTestService(t, "http://localhost:0", chatModel)

	req := testRequest("sess-1")
	req.Template.Content = regenerationMarker + ": shorten the summary section.\n\nExisting document body."
	_, err := svc.GenerateFromContext(context.Background(), nil, req)
	require.NoError(t, err)

	prompt := chatModel.calls[0]
	require.Contains(t, prompt[1].Content, "Modify the existing document")
	require.NotContains(t, prompt[1].Content, "Key Requirements")
}

func TestGenerateAgenticFastPath(t *testing.T) {
	backend := segmentBackend(t, 40, sampleSegments(40))
	defer backend.Close()

	chatModel := &scriptedChatModel{responses: []*schema.Message{
		schema.AssistantMessage("generated document", nil),
	}}
	svc := newTestService(t, backend.URL, chatModel)

	var stages []string
	doc := svc.GenerateAgentic(context.Background(), testAuth(), testRequest("sess-1"), func(p Progress) {
		stages = append(stages, p.Stage)
	})

	require.Equal(t, "generated document", doc.Content)
	require.Equal(t, "fast_path", doc.Metadata["processingMethod"])
	require.Equal(t, 40, doc.Metadata["segmentsUsed"])
	require.Equal(t, []string{"policy_check", "analysing_sessions", "retrieving_content", "writing_document", "document_ready"}, stages)

	// Only the generator hit the model; the explorer never ran.
	require.Len(t, chatModel.calls, 1)
}

func TestGenerateAgenticExplorationPath(t *testing.T) {
	backend := segmentBackend(t, 500, sampleSegments(30))
	defer backend.Close()

	chatModel := &scriptedChatModel{responses: []*schema.Message{
		{Role: schema.Assistant, Content: "Pulling the session first.", ToolCalls: []schema.ToolCall{
			explorerToolCall("call-1", "pull_full_session", `{"session_id":"sess-1"}`),
		}},
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			explorerToolCall("call-2", "generate_document", "{}"),
		}},
		schema.AssistantMessage("final document", nil),
	}}
	svc := newTestService(t, backend.URL, chatModel)

	var events []Progress
	doc := svc.GenerateAgentic(context.Background(), testAuth(), testRequest("sess-1", "sess-2"), func(p Progress) {
		events = append(events, p)
	})

	require.Equal(t, "final document", doc.Content)
	require.Equal(t, "agentic_exploration", doc.Metadata["processingMethod"])
	require.Equal(t, 30, doc.Metadata["segmentsUsed"])

	var stages []string
	for _, event := range events {
		stages = append(stages, event.Type+":"+event.Stage)
	}
	require.Contains(t, stages, "agent_thinking:agentic_exploration")
	require.Contains(t, stages, "stage_started:agentic_exploration")
	require.Contains(t, stages, "stage_completed:agentic_exploration")
	require.Contains(t, stages, "stage_completed:document_ready")

	// Explorer saw the pull result before deciding to generate.
	require.Len(t, chatModel.calls, 3)
	secondStep := chatModel.calls[1]
	last := secondStep[len(secondStep)-1]
	require.Equal(t, schema.Tool, last.Role)
	require.Contains(t, last.Content, "Successfully retrieved all 30 segments")
}

func TestGenerateAgenticErrorDocument(t *testing.T) {
	// Backend is unreachable: fast-path metadata lookup fails outright.
	chatModel := &scriptedChatModel{}
	svc := newTestService(t, "http://127.0.0.1:0", chatModel)

	doc := svc.GenerateAgentic(context.Background(), testAuth(), testRequest("sess-1"), nil)
	require.Contains(t, doc.Content, "# Generation Error")
	require.Equal(t, true, doc.Metadata["error"])
	require.Equal(t, "error_handling", doc.Metadata["processingMethod"])
}

func TestCheckContextSufficiency(t *testing.T) {
	ec := &explorationContext{}
	result := checkContextSufficiency(ec)
	require.Equal(t, false, result["is_sufficient"])

	ec.addSegments(make([]platform.Segment, 200), "sess-1")
	result = checkContextSufficiency(ec)
	require.Equal(t, true, result["is_sufficient"])
	require.Equal(t, 200*tokensPerSegment, result["tokens_used"])
	require.Equal(t, 1, result["sessions_explored"])
}

func TestPullFullSessionRespectsBudget(t *testing.T) {
	backend := segmentBackend(t, 900, sampleSegments(900))
	defer backend.Close()

	svc := newTestService(t, backend.URL, &scriptedChatModel{})
	ec := &explorationContext{}
	result := svc.pullFullSession(context.Background(), testAuth(), ec, "sess-1")
	require.Equal(t, false, result["success"])
	require.Equal(t, "Token budget exceeded", result["error"])
	require.Empty(t, ec.segments)
}
