// Package tools implements the functions personas can call during chat:
// practice-data lookups against the backend, workspace actions that drive
// the frontend, transcript analysis, and jAImee's wellbeing exercises.
package tools

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/model/uistate"
	"github.com/antsa-au/haystack-service/internal/platform"
)

// Handler executes one tool call and returns the tool's result value.
// Returned errors become failure envelopes, not transport errors.
type Handler func(ctx context.Context, inv *Invocation, args Args) (any, error)

// Tool pairs a callable schema with its implementation.
type Tool struct {
	Info *schema.ToolInfo
	Run  Handler
}

// Invocation carries the per-call state tools need: whose session is
// calling, with which backend credentials, from which page.
type Invocation struct {
	SessionID string
	Auth      platform.Auth
	Page      *uistate.PageContext
}

// Envelope is the uniform tool execution result fed back to the model.
type Envelope struct {
	Success   bool   `json:"success"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Tool      string `json:"tool"`
	Timestamp string `json:"timestamp"`
}

func successEnvelope(tool string, result any) Envelope {
	return Envelope{
		Success:   true,
		Result:    result,
		Tool:      tool,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func failureEnvelope(tool, message string) Envelope {
	return Envelope{
		Success:   false,
		Error:     message,
		Tool:      tool,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
