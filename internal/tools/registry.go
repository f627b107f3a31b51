package tools

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/schema"

	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/platform"
	uistateService "github.com/antsa-au/haystack-service/internal/service/uistate"
)

// Registry holds every tool implementation and resolves the subset each
// persona may call.
type Registry struct {
	personas persona.Store
	backend  *platform.Client
	states   *uistateService.Manager

	tools map[string]Tool
}

// NewRegistry builds the registry with all tools registered.
func NewRegistry(personas persona.Store, backend *platform.Client, states *uistateService.Manager) *Registry {
	r := &Registry{
		personas: personas,
		backend:  backend,
		states:   states,
		tools:    make(map[string]Tool),
	}
	r.registerAssistantTools()
	r.registerWorkspaceTools()
	r.registerAnalysisTools()
	r.registerTherapistTools()
	return r
}

func (r *Registry) register(t Tool) {
	r.tools[t.Info.Name] = t
}

// Count reports how many tools are registered.
func (r *Registry) Count() int {
	return len(r.tools)
}

// Infos returns the tool schemas bound to a persona, in the persona's
// declared order. Names without a registered tool are skipped.
func (r *Registry) Infos(personaType string) []*schema.ToolInfo {
	p, ok := r.personas.Find(personaType)
	if !ok {
		return nil
	}
	infos := make([]*schema.ToolInfo, 0, len(p.Tools))
	for _, name := range p.Tools {
		t, ok := r.tools[name]
		if !ok {
			log.Printf("[tools] persona %s references unregistered tool %s", personaType, name)
			continue
		}
		infos = append(infos, t.Info)
	}
	return infos
}

// Execute runs a named tool and wraps the outcome in the envelope the
// pipeline feeds back to the model. Tool-level problems (backend errors,
// missing arguments) are reported inside the result so the model can react;
// the failure envelope is reserved for calls that cannot run at all.
func (r *Registry) Execute(ctx context.Context, name string, inv *Invocation, args Args) Envelope {
	t, ok := r.tools[name]
	if !ok {
		return failureEnvelope(name, fmt.Sprintf("Unknown tool: %s", name))
	}

	result, err := t.Run(ctx, inv, args)
	if err != nil {
		log.Printf("[tools] %s failed: %v", name, err)
		return failureEnvelope(name, err.Error())
	}
	return successEnvelope(name, result)
}

// pick mirrors a lookup with a fallback for missing keys. A key present
// with a null value stays null.
func pick(m map[string]any, key string, def any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
