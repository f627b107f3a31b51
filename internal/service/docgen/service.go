// Package docgen turns therapy session transcripts into clinical documents.
// Small single-session jobs pull the whole transcript and generate directly;
// everything else goes through an exploration agent that decides what to
// read within a token budget. Every job passes a content-policy check first.
package docgen

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/antsa-au/haystack-service/internal/platform"
)

const (
	// fastPathSegmentLimit is the session size under which generation skips
	// the exploration agent entirely.
	fastPathSegmentLimit = 150
	// fullSessionSegmentLimit caps a whole-session segment pull.
	fullSessionSegmentLimit = 1000
)

// Template is the document template to fill.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Person identifies a client or practitioner for personalization.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Request describes one document generation job.
type Request struct {
	Template               Template `json:"template"`
	SessionIDs             []string `json:"sessionIds"`
	ClientInfo             Person   `json:"clientInfo"`
	PractitionerInfo       Person   `json:"practitionerInfo"`
	GenerationInstructions string   `json:"generationInstructions,omitempty"`
	GenerationID           string   `json:"generationId,omitempty"`
}

// Document is the generation result.
type Document struct {
	Content     string         `json:"content"`
	GeneratedAt string         `json:"generatedAt"`
	Metadata    map[string]any `json:"metadata"`
}

// Progress is one generation progress event, delivered to the frontend over
// the session's WebSocket.
type Progress struct {
	Type    string         `json:"type"`
	Stage   string         `json:"stage"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ProgressFunc receives progress events during generation. Never nil inside
// the service; callers without a transport pass nothing and get a no-op.
type ProgressFunc func(Progress)

// Config tunes document generation behavior.
type Config struct {
	// SkipPolicyCheck disables the content policy classifier. Test-only.
	SkipPolicyCheck bool
}

// Service generates clinical documents from session transcripts.
type Service struct {
	backend *platform.Client
	model   model.ToolCallingChatModel
	policy  *policyChecker
	cfg     Config
}

// NewService wires the generator. The chat model is the service's base model;
// docgen picks its own model and sampling per call.
func NewService(ctx context.Context, backend *platform.Client, chatModel model.ToolCallingChatModel, cfg Config) (*Service, error) {
	policy, err := newPolicyChecker(ctx, chatModel)
	if err != nil {
		return nil, err
	}
	return &Service{
		backend: backend,
		model:   chatModel,
		policy:  policy,
		cfg:     cfg,
	}, nil
}

// GenerateAgentic runs a full generation job: policy check, then the fast
// path for a single small session or agentic exploration otherwise. Errors
// come back as a readable error document rather than a transport failure;
// the frontend renders whatever content it receives.
func (s *Service) GenerateAgentic(ctx context.Context, auth platform.Auth, req Request, emit ProgressFunc) Document {
	if emit == nil {
		emit = func(Progress) {}
	}

	log.Printf("[docgen] generating document from template %q over %d sessions", req.Template.Name, len(req.SessionIDs))

	doc, err := s.generate(ctx, auth, req, emit)
	if err != nil {
		log.Printf("[docgen] generation failed: %v", err)
		return errorDocument(err)
	}
	return doc
}

func (s *Service) generate(ctx context.Context, auth platform.Auth, req Request, emit ProgressFunc) (Document, error) {
	emit(Progress{Type: "stage_started", Stage: "policy_check", Message: "Checking template for policy violations..."})

	if !s.cfg.SkipPolicyCheck {
		verdict := s.policy.Check(ctx, req.Template.Content)
		if verdict.IsViolation {
			log.Printf("[docgen] policy violation detected: %s", verdict.ViolationType)
			s.reportViolation(auth, req, verdict)
			return violationDocument(verdict, req, time.Now().UTC().Format(time.RFC3339)), nil
		}
	}

	// Fast path: a single session small enough to read whole.
	if len(req.SessionIDs) == 1 {
		meta, err := s.backend.SessionMetadataFor(ctx, auth, req.SessionIDs[0])
		if err != nil {
			return Document{}, err
		}
		if meta != nil && meta.TotalSegments < fastPathSegmentLimit {
			return s.generateFast(ctx, auth, req, meta, emit)
		}
	}

	return s.generateAgentic(ctx, auth, req, emit)
}

// generateFast pulls the whole transcript and generates without exploration.
func (s *Service) generateFast(ctx context.Context, auth platform.Auth, req Request, meta *platform.SessionMetadata, emit ProgressFunc) (Document, error) {
	log.Printf("[docgen] fast path: single session with %d segments", meta.TotalSegments)

	emit(Progress{
		Type: "progress_update", Stage: "analysing_sessions",
		Message: "Analysing session size and content...",
		Details: map[string]any{"sessionCount": 1},
	})
	emit(Progress{
		Type: "progress_update", Stage: "retrieving_content",
		Message: fmt.Sprintf("Loading transcript (%d segments)...", meta.TotalSegments),
		Details: map[string]any{"segments": meta.TotalSegments, "tokens": estimateTokens(meta.TotalSegments)},
	})

	segments, err := s.backend.SegmentsBySessions(ctx, auth, req.SessionIDs, fullSessionSegmentLimit)
	if err != nil {
		return Document{}, err
	}

	emit(Progress{
		Type: "progress_update", Stage: "writing_document",
		Message: fmt.Sprintf("Writing document using '%s'...", req.Template.Name),
		Details: map[string]any{"templateName": req.Template.Name},
	})

	doc, err := s.GenerateFromContext(ctx, segments, req)
	if err != nil {
		return Document{}, err
	}
	doc.Metadata["processingMethod"] = "fast_path"

	emit(Progress{Type: "stage_completed", Stage: "document_ready", Message: "Document generated successfully!"})
	return doc, nil
}

// generateAgentic lets the exploration agent choose what to read before
// generating.
func (s *Service) generateAgentic(ctx context.Context, auth platform.Auth, req Request, emit ProgressFunc) (Document, error) {
	emit(Progress{
		Type: "progress_update", Stage: "preparing_agent",
		Message: fmt.Sprintf("Preparing to analyse %d session(s)...", len(req.SessionIDs)),
		Details: map[string]any{"sessionCount": len(req.SessionIDs)},
	})
	emit(Progress{Type: "stage_started", Stage: "agentic_exploration", Message: "AI agent is exploring session content..."})

	ec, err := s.explore(ctx, auth, req, emit)
	if err != nil {
		return Document{}, err
	}

	switch {
	case len(ec.segments) == 0:
		log.Printf("[docgen] exploration retrieved no segments, document quality will suffer")
	case len(ec.segments) < 20:
		log.Printf("[docgen] exploration retrieved only %d segments, may be insufficient", len(ec.segments))
	}

	emit(Progress{
		Type: "stage_completed", Stage: "agentic_exploration",
		Message: fmt.Sprintf("Agent explored %d sessions and collected %d segments", len(ec.explored), len(ec.segments)),
		Details: map[string]any{"segments": len(ec.segments), "tokens": ec.tokens, "sessions": ec.explored},
	})
	emit(Progress{Type: "stage_started", Stage: "generating_document", Message: "Generating document from accumulated context..."})

	doc, err := s.GenerateFromContext(ctx, ec.segments, req)
	if err != nil {
		return Document{}, err
	}
	doc.Metadata["processingMethod"] = "agentic_exploration"
	doc.Metadata["agentExploration"] = map[string]any{
		"tokensUsed":       ec.tokens,
		"sessionsExplored": ec.explored,
	}

	emit(Progress{
		Type: "stage_completed", Stage: "document_ready",
		Message: "Document generated successfully!",
		Details: map[string]any{"segmentsUsed": len(ec.segments), "sessionsExplored": len(ec.explored)},
	})
	return doc, nil
}

// reportViolation records the violation with the backend audit log without
// blocking or failing the response.
func (s *Service) reportViolation(auth platform.Auth, req Request, verdict policyVerdict) {
	if auth.ProfileID == "" {
		return
	}

	violation := platform.PolicyViolation{
		ProfileID:       auth.ProfileID,
		TemplateID:      req.Template.ID,
		TemplateName:    req.Template.Name,
		ViolationType:   verdict.ViolationType,
		TemplateContent: stripSafetyInstructions(req.Template.Content),
		Reason:          verdict.Reason,
		Confidence:      verdict.Confidence,
		ClientID:        req.ClientInfo.ID,
		Metadata: map[string]any{
			"timestamp":              time.Now().UTC().Format(time.RFC3339),
			"generationInstructions": req.GenerationInstructions,
		},
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.backend.LogPolicyViolation(ctx, auth, violation); err != nil {
			log.Printf("[docgen] failed to log policy violation: %v", err)
		}
	}()
}

// errorDocument renders a failure as a document the frontend can display.
func errorDocument(err error) Document {
	detail := err.Error()
	if len(detail) > 200 {
		detail = detail[:200]
	}

	content := fmt.Sprintf(`# Generation Error

An error occurred while generating your document.

**What you can do:**
- Click the Generate button again to retry
- Contact support if the problem persists

**Error details:** %s`, detail)

	message := err.Error()
	if len(message) > 500 {
		message = message[:500]
	}

	return Document{
		Content:     content,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Metadata: map[string]any{
			"error":            true,
			"errorMessage":     message,
			"processingMethod": "error_handling",
		},
	}
}
