// Package pipeline runs persona conversations end to end. Each request
// assembles the model input from session history, streams the reply, executes
// the tool calls the model plans, and feeds results back until the model
// answers in plain text. Requests are rate limited per user rather than
// globally so one spammy user cannot starve the rest.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/config"
	"github.com/antsa-au/haystack-service/internal/model/chat"
	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/model/uistate"
	"github.com/antsa-au/haystack-service/internal/platform"
	"github.com/antsa-au/haystack-service/internal/service/ai"
	"github.com/antsa-au/haystack-service/internal/service/session"
	"github.com/antsa-au/haystack-service/internal/tools"
)

// fallbackResponse is streamed and persisted when generation fails for any
// reason. The user always gets a reply, never a transport error.
const fallbackResponse = "I apologize, but I encountered an error processing your request. Please try again."

const (
	// maxToolIterations bounds the plan-execute loop per request.
	maxToolIterations = 6
	// historyLimit caps the conversation window sent to the model, counting
	// the user turn that triggered the request.
	historyLimit = 20
)

// Streamer starts a streaming completion for a persona. Implemented by the
// ai service; tests substitute scripted models.
type Streamer interface {
	Stream(ctx context.Context, p persona.Persona, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error)
}

// PageNamer translates frontend page identifiers into user-facing names.
type PageNamer interface {
	DisplayName(pageType string) string
}

// Request is one chat turn to process.
type Request struct {
	SessionID   string
	PersonaType string
	UserMessage string
	Context     map[string]any
	AuthToken   string
}

// Result is the outcome of a processed turn: the persisted response text and
// any UI actions tools emitted for the frontend to perform.
type Result struct {
	Response  string
	UIActions []map[string]any
}

// Service orchestrates persona conversations.
type Service struct {
	personas persona.Store
	sessions *session.Store
	model    Streamer
	registry *tools.Registry
	pages    PageNamer
	cfg      config.PipelineConfig

	limiter *userLimiter
}

// NewService wires the pipeline dependencies.
func NewService(personas persona.Store, sessions *session.Store, model Streamer, registry *tools.Registry, pages PageNamer, cfg config.PipelineConfig) *Service {
	return &Service{
		personas: personas,
		sessions: sessions,
		model:    model,
		registry: registry,
		pages:    pages,
		cfg:      cfg,
		limiter:  newUserLimiter(cfg.MaxRequestsPerUser),
	}
}

// Stream processes one chat turn, forwarding response text to emit as it is
// produced. Tool banners and UI notices are interleaved with model output for
// personas that show them. Failures degrade to a spoken apology so the
// conversation never surfaces a raw error.
func (s *Service) Stream(ctx context.Context, req Request, emit func(chunk string)) Result {
	userID := contextString(req.Context, "user_id")
	if userID == "" {
		userID = "anonymous"
	}
	if !s.limiter.acquire(ctx, userID) {
		return Result{}
	}
	defer s.limiter.release(userID)

	run := &run{sink: emit}
	if err := s.generate(ctx, req, run); err != nil {
		log.Printf("[pipeline] generation failed for session %s: %v", req.SessionID, err)
		if _, saveErr := s.sessions.AppendMessage(ctx, req.SessionID, chat.RoleAssistant, fallbackResponse); saveErr != nil {
			log.Printf("[pipeline] failed to save fallback response: %v", saveErr)
		}
		run.emit(fallbackResponse)
		return Result{Response: fallbackResponse, UIActions: run.uiActions}
	}

	response := run.full.String()
	if _, err := s.sessions.AppendMessage(ctx, req.SessionID, chat.RoleAssistant, response); err != nil {
		log.Printf("[pipeline] failed to save assistant response: %v", err)
	}
	return Result{Response: response, UIActions: run.uiActions}
}

// Respond processes one chat turn without streaming and returns the complete
// response.
func (s *Service) Respond(ctx context.Context, req Request) Result {
	return s.Stream(ctx, req, nil)
}

// generate runs the conversation loop. Text the model produces alongside tool
// calls is streamed but only the final answer and tool banners persist into
// the session transcript.
func (s *Service) generate(ctx context.Context, req Request, run *run) error {
	sess, err := s.sessions.Get(ctx, req.SessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		// Recreate under the same ID so the frontend's session reference
		// stays valid across restarts and TTL evictions.
		log.Printf("[pipeline] session %s not found, creating replacement with same id", req.SessionID)
		profileID := contextString(req.Context, "profile_id")
		if profileID == "" {
			profileID = contextString(req.Context, "profileId")
		}
		sess, err = s.sessions.CreateWithID(ctx, req.SessionID, req.PersonaType, req.Context, profileID)
	}
	if err != nil {
		return err
	}

	if _, err := s.sessions.AppendMessage(ctx, req.SessionID, chat.RoleUser, req.UserMessage); err != nil {
		return err
	}

	p, ok := s.personas.Find(req.PersonaType)
	if !ok {
		return errors.New("unknown persona type: " + req.PersonaType)
	}

	prior := sess.RecentMessages(historyLimit - 1)

	promptSource := req.Context
	if len(promptSource) == 0 {
		promptSource = sess.Context
	}
	systemPrompt := ai.BuildSystemPrompt(p, promptContext(promptSource))

	authToken := req.AuthToken
	if authToken == "" {
		authToken = sess.AuthToken
	}
	inv := &tools.Invocation{
		SessionID: req.SessionID,
		Auth:      platform.Auth{Token: authToken, ProfileID: sess.ProfileID},
		Page:      s.pageContext(req.Context),
	}

	messages := make([]*schema.Message, 0, len(prior)+4)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, msg := range prior {
		switch msg.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(req.UserMessage))

	if memory := workspaceMemory(sess.Context); memory != "" {
		messages = append(messages, schema.AssistantMessage(memory, nil))
	}

	if p.Type == persona.TypeJaimeeTherapist && len(p.Tools) > 0 && firstUserTurn(prior) {
		if preload := s.preloadMoodContext(ctx, inv); preload != "" {
			messages = append(messages, schema.AssistantMessage(preload, nil))
		}
	}

	state := &loopState{
		lastFoundClientID: contextString(sess.Context, "last_client_id"),
		lastClientName:    contextString(sess.Context, "last_client_name"),
		lastAssignmentID:  contextString(sess.Context, "last_assignment_id"),
	}

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		stream, err := s.model.Stream(ctx, p, messages)
		if err != nil {
			return err
		}

		chunks := make([]*schema.Message, 0, 8)
		for {
			chunk, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if recvErr != nil {
				stream.Close()
				return recvErr
			}
			if chunk == nil {
				continue
			}
			chunks = append(chunks, chunk)
			if chunk.Content != "" {
				run.emit(chunk.Content)
			}
		}
		stream.Close()

		if len(chunks) == 0 {
			break
		}
		response, err := schema.ConcatMessages(chunks)
		if err != nil {
			return err
		}

		if len(response.ToolCalls) == 0 {
			run.full.WriteString(response.Content)
			break
		}

		calls := normalizeToolCalls(response.ToolCalls)
		messages = append(messages, schema.AssistantMessage(response.Content, calls))
		messages = append(messages, s.executeToolCalls(ctx, req, p, inv, calls, state, run)...)
	}

	return nil
}

// firstUserTurn reports whether the prior history holds no user messages,
// marking the opening turn of a conversation.
func firstUserTurn(prior []chat.Message) bool {
	for _, msg := range prior {
		if msg.Role == chat.RoleUser {
			return false
		}
	}
	return true
}

// preloadMoodContext fetches jAImee's mood and profile snapshot ahead of the
// first exchange. Preload failures are logged and skipped; the conversation
// proceeds without the extra context.
func (s *Service) preloadMoodContext(ctx context.Context, inv *tools.Invocation) string {
	log.Printf("[pipeline] first jaimee interaction, preloading mood and profile context")
	env := s.registry.Execute(ctx, "get_client_mood_profile", inv, tools.Args{
		"include_mood_history":    true,
		"include_profile_details": true,
	})
	if !env.Success {
		reason := env.Error
		if reason == "" {
			reason = "unknown error"
		}
		log.Printf("[pipeline] mood profile preload failed: %s", reason)
		return ""
	}
	return "[Internal Context] " + contextSummary(resultMap(env.Result))
}

// bannersFor reports whether tool progress lines are shown to this persona.
// jAImee keeps a clean conversational surface; the practice assistant narrates
// its tool usage.
func (s *Service) bannersFor(p persona.Persona) bool {
	return p.Type == persona.TypeWebAssistant && s.cfg.ShowToolBanner
}

// pageContext builds the tool gating context from the request context. The
// frontend reports the page identity under page_context and the allowed
// workspace tools under ui_capabilities.
func (s *Service) pageContext(reqContext map[string]any) *uistate.PageContext {
	if contextString(reqContext, "page_context") == "" && contextString(reqContext, "page_url") == "" {
		return nil
	}

	pageType := contextString(reqContext, "page_context")
	if pageType == "" {
		pageType = "unknown"
	}
	page := &uistate.PageContext{
		PageType:        pageType,
		PageDisplayName: s.pages.DisplayName(pageType),
		PageURL:         contextString(reqContext, "page_url"),
		Capabilities:    contextStrings(reqContext, "ui_capabilities"),
		ClientID:        contextString(reqContext, "client_id"),
		ActiveTab:       contextString(reqContext, "active_tab"),
	}
	log.Printf("[pipeline] page context set: %s (%s) capabilities=%v", page.PageDisplayName, page.PageType, page.Capabilities)
	return page
}

// run tracks one request's streaming state: the sink receiving chunks, the
// text that persists into the transcript, and accumulated UI actions.
type run struct {
	sink      func(string)
	full      strings.Builder
	uiActions []map[string]any
}

// emit forwards text to the sink without recording it.
func (r *run) emit(text string) {
	if r.sink != nil && text != "" {
		r.sink(text)
	}
}

// say forwards text and records it into the persisted response.
func (r *run) say(text string) {
	r.full.WriteString(text)
	r.emit(text)
}

// addActions collects the ui_action value from a tool result, which is a
// single action or a list of them.
func (r *run) addActions(value any) {
	switch v := value.(type) {
	case map[string]any:
		r.uiActions = append(r.uiActions, v)
	case []map[string]any:
		r.uiActions = append(r.uiActions, v...)
	case []any:
		for _, item := range v {
			if action, ok := item.(map[string]any); ok {
				r.uiActions = append(r.uiActions, action)
			}
		}
	}
}
