package ai

import (
	"strings"
	"testing"

	"github.com/antsa-au/haystack-service/internal/model/persona"
)

func TestBuildSystemPromptAppendsContextForDataPersona(t *testing.T) {
	p := persona.Persona{Type: persona.TypeWebAssistant, SystemPrompt: "base prompt", HasDBAccess: true}

	got := BuildSystemPrompt(p, PromptContext{
		PageContext: `{"page_type":"transcribe_page"}`,
		UserInfo:    "practitioner Jane",
	})

	if !strings.HasPrefix(got, "base prompt") {
		t.Fatalf("system prompt must lead with the persona prompt: %q", got)
	}
	if !strings.Contains(got, "Current page context: {\"page_type\":\"transcribe_page\"}") {
		t.Fatalf("page context missing: %q", got)
	}
	if !strings.Contains(got, "User information: practitioner Jane") {
		t.Fatalf("user info missing: %q", got)
	}
	if strings.Contains(got, "Relevant clinic data") {
		t.Fatalf("empty clinic data must be skipped: %q", got)
	}
}

func TestBuildSystemPromptSkipsContextWithoutDataAccess(t *testing.T) {
	p := persona.Persona{Type: persona.TypeJaimeeTherapist, SystemPrompt: "therapy prompt", HasDBAccess: false}

	got := BuildSystemPrompt(p, PromptContext{PageContext: "{}", UserInfo: "x", ClinicData: "y"})
	if got != "therapy prompt" {
		t.Fatalf("therapeutic persona must not receive practice context: %q", got)
	}
}
