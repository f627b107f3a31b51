package ai

import (
	"strings"

	"github.com/antsa-au/haystack-service/internal/model/persona"
)

// PromptContext carries per-request context appended to a persona's system
// prompt. Values are preserialized strings; empty values are skipped.
type PromptContext struct {
	PageContext string
	UserInfo    string
	ClinicData  string
}

// BuildSystemPrompt assembles the system prompt for a persona. Context
// blocks are only appended for personas with data access; jAImee's
// therapeutic prompt stays free of practice internals.
func BuildSystemPrompt(p persona.Persona, pctx PromptContext) string {
	if !p.HasDBAccess {
		return p.SystemPrompt
	}

	var b strings.Builder
	b.WriteString(p.SystemPrompt)

	if pctx.PageContext != "" {
		b.WriteString("\n\nCurrent page context: ")
		b.WriteString(pctx.PageContext)
	}
	if pctx.UserInfo != "" {
		b.WriteString("\n\nUser information: ")
		b.WriteString(pctx.UserInfo)
	}
	if pctx.ClinicData != "" {
		b.WriteString("\n\nRelevant clinic data: ")
		b.WriteString(pctx.ClinicData)
	}

	return b.String()
}
