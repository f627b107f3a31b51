// Package ai owns the chat model plumbing: one OpenAI-compatible base model,
// with a tool-bound variant per persona. The chat pipeline streams through
// these models; document generation borrows the base model for its own chains.
package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/config"
	"github.com/antsa-au/haystack-service/internal/model/persona"
)

// ToolProvider supplies the tool schemas a persona may call.
type ToolProvider interface {
	Infos(personaType string) []*schema.ToolInfo
}

// Service encapsulates model access for persona conversations.
type Service struct {
	base     model.ToolCallingChatModel
	personas persona.Store
	cfg      config.AIConfig
	models   map[string]model.ToolCallingChatModel
}

// NewService creates the base chat model and binds each persona's tools.
func NewService(ctx context.Context, personas persona.Store, cfg config.AIConfig, tools ToolProvider) (*Service, error) {
	base, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	models := make(map[string]model.ToolCallingChatModel)
	for _, p := range personas.List() {
		bound := base
		if infos := tools.Infos(p.Type); len(infos) > 0 {
			bound, err = base.WithTools(infos)
			if err != nil {
				return nil, fmt.Errorf("failed to bind tools for persona %s: %w", p.Type, err)
			}
			log.Printf("[ai] bound %d tools for persona %s", len(infos), p.Type)
		}
		models[p.Type] = bound
	}

	return &Service{
		base:     base,
		personas: personas,
		cfg:      cfg,
		models:   models,
	}, nil
}

// BaseModel returns the underlying chat model without persona tools.
func (s *Service) BaseModel() model.ToolCallingChatModel {
	return s.base
}

// Stream starts a streaming completion for a persona over prepared messages.
func (s *Service) Stream(ctx context.Context, p persona.Persona, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	m, ok := s.models[p.Type]
	if !ok {
		return nil, fmt.Errorf("no model bound for persona %s", p.Type)
	}

	stream, err := m.Stream(ctx, messages, personaOptions(p)...)
	if err != nil {
		return nil, fmt.Errorf("failed to stream model output: %w", err)
	}
	return stream, nil
}

// personaOptions applies the persona's sampling parameters to a call.
func personaOptions(p persona.Persona) []model.Option {
	return []model.Option{
		model.WithModel(p.Model),
		model.WithTemperature(p.Temperature),
		model.WithMaxTokens(p.MaxTokens),
	}
}
