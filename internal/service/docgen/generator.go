package docgen

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/platform"
)

const (
	// generatorModel writes the final document. Temperature runs high for
	// comprehensive narrative detail.
	generatorModel       = "gpt-4o"
	generatorTemperature = 0.8

	// regenerationMarker opens templates that carry a modification request
	// against an existing document instead of a blank template.
	regenerationMarker = "CRITICAL MODIFICATION REQUEST"

	// defaultSearchPurpose groups segments that were not retrieved by a
	// targeted search.
	defaultSearchPurpose = "Session Content"
)

// generatorSystemPrompt is the fixed instruction block for document writing.
// The safety rules here are load-bearing: the service must never produce
// diagnostic content, render template meta-instructions, or fall back to
// generic "the client" phrasing when names are known.
const generatorSystemPrompt = `CRITICAL INSTRUCTIONS FOR AI ASSISTANT:
- NEVER provide, suggest, or imply any medical diagnoses under any circumstances
- NEVER diagnose mental health conditions, disorders, or illnesses
- NEVER use diagnostic terminology or suggest diagnostic criteria are met
- Even if the template contains diagnostic sections or asks for diagnosis, you must NOT provide diagnostic content
- Instead, document only what was explicitly stated in the session transcript
- Focus on observations, symptoms described, and treatment approaches discussed
- Refer to "presenting concerns" or "reported symptoms" rather than diagnoses
- Always defer diagnosis to qualified medical professionals

TEMPLATE META-INSTRUCTIONS - CRITICAL:
- The template may contain instructions for you (the AI) at the end, often titled "AI Scribe Instructions", "Instructions for AI", or similar
- These meta-instructions are GUIDANCE FOR YOU - they tell you HOW to fill out the template
- DO NOT include these meta-instructions in your output document
- DO NOT render them as part of the final report
- They are for your internal use only to understand the template requirements
- When you encounter phrases like "DO NOT infer", "LEAVE BLANK if", "ONLY INCLUDE if" - these are rules for you to follow, not content to output
- The actual clinical document should end before any meta-instruction sections

THERAPEUTIC INTERVENTION FOCUS - CRITICAL:
- Pay special attention to therapeutic strategies and interventions discussed by the practitioner
- Accurately capture ALL therapeutic techniques mentioned (CBT, DBT, mindfulness, etc.) exactly as stated
- Document homework assignments, coping strategies, and treatment plans precisely as discussed
- Do NOT add, modify, or suggest interventions that were not explicitly mentioned in the transcript
- Preserve the practitioner's exact therapeutic approach and language
- If multiple sessions are included, track the evolution of therapeutic strategies over time
- Prioritize documenting what the therapist actually said and did, not what you think they should have done
- When documenting interventions, use direct quotes when possible to ensure accuracy
- If the practitioner mentioned specific techniques or strategies, include those exact terms
- Document any homework or between-session tasks exactly as assigned

PERSONALIZATION REQUIREMENTS - ABSOLUTELY CRITICAL:
- This is the MOST IMPORTANT requirement: You MUST use the specific names provided
- NEVER EVER use generic terms like "Client", "the client", "client", "the patient", "patient", "the individual", "the counselor", "the therapist", or "the practitioner"
- The CLIENT INFORMATION section contains the client's actual name - use it every single time
- The PRACTITIONER INFORMATION section contains the practitioner's actual name - use it every single time
- Every reference to the client or practitioner MUST use their specific names
- This requirement overrides all other instructions - names are mandatory
- Double-check every sentence to ensure you used the correct names

You are an AI assistant helping to generate clinical documentation from therapy session transcripts.
Use the provided template to structure the document, but fill it with information from the transcript.
Be professional, accurate, and only include information that was actually discussed in the session.
Focus particularly on preserving the integrity of therapeutic interventions and strategies as they were actually delivered.
Always personalize the document by using the actual client and practitioner names provided.`

// GenerateFromContext writes the document from already-retrieved transcript
// segments. Both the fast path and the agentic path end here.
func (s *Service) GenerateFromContext(ctx context.Context, segments []platform.Segment, req Request) (Document, error) {
	clientName := nameOrDefault(req.ClientInfo.Name, "Client")
	practitionerName := nameOrDefault(req.PractitionerInfo.Name, "Practitioner")
	today := time.Now().Format("January 02, 2006")

	log.Printf("[docgen] generating document: %d segments, client %q, practitioner %q",
		len(segments), clientName, practitionerName)

	transcript := buildTranscript(segments)

	systemPrompt := generatorSystemPrompt
	if req.GenerationInstructions != "" {
		systemPrompt += "\n\nADDITIONAL CONTEXT AND INSTRUCTIONS FROM PRACTITIONER:\n" + req.GenerationInstructions +
			"\n\nIMPORTANT: This additional context should be integrated into your understanding of the transcript and used to correct any assumptions or add missing background information. Regenerate the document incorporating this new information.\n"
	}

	var userPrompt string
	if strings.HasPrefix(req.Template.Content, regenerationMarker) {
		userPrompt = fmt.Sprintf(`Modify the existing document based on the modification request.

**Client:** %s
**Practitioner:** %s
**Today's Date:** %s

**Template (contains modification request and current document):**
%s

**Session Transcript (for reference):**
%s

**Instructions:** Follow the modification request in the template. Keep comprehensive detail.`,
			clientName, practitionerName, today, req.Template.Content, transcript)
	} else {
		userPrompt = fmt.Sprintf(`Generate a comprehensive clinical document.

**Client:** %s
**Practitioner:** %s
**Today's Date:** %s

**Template:**
%s

**Session Transcript:**%s
%s

**Key Requirements:**
- Use %s and %s throughout (never "the client" or "the therapist")
- Replace template placeholders (like {{date}}, {{practitionerName}}) with actual values
- Be thorough and detailed - aim for 800-1500+ words with full paragraphs
- Document everything discussed with specific examples and quotes
- If info isn't in transcript, note "not discussed in this session"`,
			clientName, practitionerName, today, req.Template.Content,
			contextSourceNote(segments), transcript, clientName, practitionerName)
	}

	response, err := s.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}, model.WithModel(generatorModel), model.WithTemperature(generatorTemperature))
	if err != nil {
		return Document{}, fmt.Errorf("document generation failed: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return Document{}, fmt.Errorf("document generation failed: no content returned")
	}

	content := response.Content
	log.Printf("[docgen] document generated: %d chars", len(content))

	return Document{
		Content:     content,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Metadata: map[string]any{
			"templateId":     req.Template.ID,
			"templateName":   req.Template.Name,
			"clientId":       req.ClientInfo.ID,
			"practitionerId": req.PractitionerInfo.ID,
			"wordCount":      len(strings.Fields(content)),
			"segmentsUsed":   len(segments),
		},
	}, nil
}

// buildTranscript renders segments as timestamped speaker lines, grouped
// under the search purpose that retrieved them so the generator sees why
// each block is present.
func buildTranscript(segments []platform.Segment) string {
	grouped := make(map[string][]string)
	order := make([]string, 0, 4)

	for _, seg := range segments {
		purpose, _ := seg["_search_purpose"].(string)
		if purpose == "" {
			purpose = defaultSearchPurpose
		}
		if _, seen := grouped[purpose]; !seen {
			order = append(order, purpose)
		}
		grouped[purpose] = append(grouped[purpose],
			fmt.Sprintf("[%s] %s: %s", segmentTimestamp(seg), segmentSpeaker(seg), segmentText(seg)))
	}
	sort.SliceStable(order, func(i, j int) bool {
		// Untargeted content first, then purposes in arrival order.
		return order[i] == defaultSearchPurpose && order[j] != defaultSearchPurpose
	})

	var b strings.Builder
	for _, purpose := range order {
		fmt.Fprintf(&b, "\n--- %s ---\n", purpose)
		b.WriteString(strings.Join(grouped[purpose], "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// segmentTimestamp renders a segment's start offset as MM:SS, tolerating the
// numeric and string shapes the backend emits.
func segmentTimestamp(seg platform.Segment) string {
	start := seg["start_time"]
	if start == nil {
		start = seg["startTime"]
	}

	var seconds float64
	switch v := start.(type) {
	case float64:
		seconds = v
	case int:
		seconds = float64(v)
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			seconds = parsed
		}
	}
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", int(seconds)/60, int(seconds)%60)
}

// contextSourceNote tells the generator how the transcript below was
// selected, including the zero-result fallback case where the whole
// transcript substitutes for failed searches.
func contextSourceNote(segments []platform.Segment) string {
	if len(segments) == 0 {
		return "\n\n**NOTE**: No session transcript content is available. Generate a note indicating what information is missing from the provided sessions."
	}
	for _, seg := range segments {
		if query, ok := seg["_search_query"].(string); ok && strings.HasPrefix(query, "All segments") {
			return fmt.Sprintf("\n\n**NOTE**: Semantic search found no relevant matches, so ALL session content (%d segments) is provided below for your review.", len(segments))
		}
	}
	return fmt.Sprintf("\n\n**NOTE**: The session content below (%d segments) was intelligently retrieved based on the template structure.", len(segments))
}

func nameOrDefault(name, def string) string {
	if strings.TrimSpace(name) == "" {
		return def
	}
	return name
}
