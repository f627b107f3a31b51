package docgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// safetyInstructionMarker opens the safety block the generator itself
// prepends to templates. Text before the marker is service-authored and must
// not trip the policy check on regeneration.
const safetyInstructionMarker = "CRITICAL INSTRUCTIONS FOR AI ASSISTANT:"

// policyVerdict is the classifier's decision about a template.
type policyVerdict struct {
	IsViolation   bool   `json:"is_violation"`
	ViolationType string `json:"violation_type"`
	Reason        string `json:"reason"`
	Confidence    string `json:"confidence"`
}

// policyChecker classifies template content against the content policy:
// templates must not request medical diagnoses or clinical assessments.
// The checker FAILS OPEN: when the model is unavailable or its output is
// unparsable, generation proceeds. Blocking legitimate clinical paperwork
// is worse than occasionally letting a template through.
type policyChecker struct {
	classifier compose.Runnable[map[string]any, *schema.Message]
}

const policySystemPrompt = `You are a content policy classifier for a clinical documentation service.

Review the document template below and decide whether it violates the policy. A template VIOLATES the policy when it asks the AI to:
- provide, confirm, or imply a medical or mental health diagnosis
- decide whether a client meets diagnostic criteria (DSM-5, ICD, or similar)
- perform a clinical assessment or evaluation that belongs to a qualified professional
- prescribe or recommend medication

A template DOES NOT violate the policy when it:
- documents symptoms, observations, or concerns the client reported
- records existing diagnoses mentioned during the session as historical fact
- structures session notes, treatment plans, or progress tracking
- contains safety instructions telling the AI what NOT to do

Respond with a single JSON object and nothing else:
{"is_violation": true|false, "violation_type": "<short snake_case label or empty>", "reason": "<one sentence>", "confidence": "high"|"medium"|"low"}`

const policyUserPrompt = `Template content:
{template_content}

Classify this template.`

// newPolicyChecker compiles the classification chain. A nil chat model
// yields a checker that always allows.
func newPolicyChecker(ctx context.Context, chatModel model.ToolCallingChatModel) (*policyChecker, error) {
	if chatModel == nil {
		return &policyChecker{}, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(policySystemPrompt),
		schema.UserMessage(policyUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy classifier chain: %w", err)
	}
	return &policyChecker{classifier: runnable}, nil
}

// Check classifies template content, stripping any service-authored safety
// block first so templates resubmitted for regeneration do not self-flag.
func (p *policyChecker) Check(ctx context.Context, templateContent string) policyVerdict {
	if p == nil || p.classifier == nil {
		return policyVerdict{}
	}

	content := stripSafetyInstructions(templateContent)
	if strings.TrimSpace(content) == "" {
		return policyVerdict{}
	}

	msg, err := p.classifier.Invoke(ctx, map[string]any{"template_content": content},
		compose.WithChatModelOption(model.WithModel(explorerModel), model.WithTemperature(0)))
	if err != nil {
		log.Printf("[docgen] policy classifier invoke failed, allowing: %v", err)
		return policyVerdict{}
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return policyVerdict{}
	}

	verdict, err := parsePolicyVerdict(msg.Content)
	if err != nil {
		log.Printf("[docgen] policy classifier output parse failed, allowing: %v", err)
		return policyVerdict{}
	}
	return verdict
}

// parsePolicyVerdict extracts the JSON object from the classifier's reply,
// tolerating prose around it.
func parsePolicyVerdict(content string) (policyVerdict, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return policyVerdict{}, fmt.Errorf("missing json object")
	}

	var verdict policyVerdict
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &verdict); err != nil {
		return policyVerdict{}, err
	}
	return verdict, nil
}

// stripSafetyInstructions removes the leading safety-instruction block a
// previous generation pass prepended, returning the practitioner-authored
// template that follows it. Content without the marker passes through
// unchanged.
func stripSafetyInstructions(content string) string {
	if !strings.Contains(content, safetyInstructionMarker) {
		return content
	}

	parts := strings.Split(content, safetyInstructionMarker)
	lastBlock := safetyInstructionMarker + parts[len(parts)-1]

	// The safety block is bullet lines; the template resumes at the first
	// substantial paragraph that is neither a bullet nor another CRITICAL
	// header.
	paragraphs := strings.Split(lastBlock, "\n\n")
	for i, paragraph := range paragraphs {
		trimmed := strings.TrimSpace(paragraph)
		if !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "CRITICAL") && len(trimmed) > 50 {
			return strings.Join(paragraphs[i:], "\n\n")
		}
	}
	return content
}

// violationDocument is the document returned in place of generation when a
// template fails the policy check.
func violationDocument(verdict policyVerdict, req Request, now string) Document {
	reasonSection := ""
	if verdict.Reason != "" {
		reasonSection = "\n\nReason: " + verdict.Reason
	}

	content := fmt.Sprintf(`⚠️ CONTENT POLICY VIOLATION DETECTED

We're unable to process this request as the template content appears to be requesting medical diagnosis or clinical assessment using diagnostic criteria, which violates our Terms of Service and responsible AI use policies.

Our system is not designed to provide medical diagnoses, mental health assessments, or clinical evaluations. Such determinations should only be made by qualified healthcare professionals in appropriate clinical settings.

**This incident has been flagged and our team has been notified.**

Violation Type: %s
Template Name: %s
Timestamp: %s%s

If you believe this was flagged in error, please contact our support team. If you're looking for documentation templates for non-diagnostic purposes (such as session notes, treatment planning, or progress tracking), we'd be happy to help with those instead.

For more information, please review our Terms of Service at www.ANTSA.com.au.`,
		verdict.ViolationType, req.Template.Name, now, reasonSection)

	confidence := verdict.Confidence
	if confidence == "" {
		confidence = "unknown"
	}

	return Document{
		Content:     content,
		GeneratedAt: now,
		Metadata: map[string]any{
			"templateId":       req.Template.ID,
			"templateName":     req.Template.Name,
			"clientId":         req.ClientInfo.ID,
			"practitionerId":   req.PractitionerInfo.ID,
			"policyViolation":  true,
			"violationType":    verdict.ViolationType,
			"confidence":       confidence,
			"reason":           verdict.Reason,
			"flagged":          true,
			"processingMethod": "policy_violation_detected",
		},
	}
}
