// Package persona lists the chat personalities the service exposes.
package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/pkg/utils"
)

// Handler owns the /personas route.
type Handler struct {
	personas persona.Store
}

// New creates the persona handler.
func New(personas persona.Store) *Handler {
	return &Handler{personas: personas}
}

// RegisterRoutes mounts the persona endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	items := make([]map[string]any, 0, 2)
	for _, p := range h.personas.List() {
		items = append(items, map[string]any{
			"type": p.Type,
			"config": map[string]any{
				"name":          p.Name,
				"description":   p.Description,
				"model":         p.Model,
				"temperature":   p.Temperature,
				"max_tokens":    p.MaxTokens,
				"has_db_access": p.HasDBAccess,
				"tools":         p.Tools,
			},
		})
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"personas": items})
}
