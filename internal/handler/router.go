package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/antsa-au/haystack-service/internal/config"
	chatHandler "github.com/antsa-au/haystack-service/internal/handler/chat"
	docgenHandler "github.com/antsa-au/haystack-service/internal/handler/docgen"
	personaHandler "github.com/antsa-au/haystack-service/internal/handler/persona"
	sessionHandler "github.com/antsa-au/haystack-service/internal/handler/session"
	streamHandler "github.com/antsa-au/haystack-service/internal/handler/stream"
	"github.com/antsa-au/haystack-service/internal/handler/ws"
	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/service/docgen"
	"github.com/antsa-au/haystack-service/internal/service/pipeline"
	"github.com/antsa-au/haystack-service/internal/service/session"
	"github.com/antsa-au/haystack-service/internal/service/uistate"
	"github.com/antsa-au/haystack-service/internal/tools"
	"github.com/antsa-au/haystack-service/pkg/utils"
)

const (
	serviceName    = "haystack-au-service"
	serviceTitle   = "Haystack AU Service"
	serviceVersion = "3.0.0"
)

// Deps carries everything the HTTP surface needs. Pipeline and Docgen may be
// nil when the AI model is not configured; their routes then answer 503 while
// the rest of the service keeps running.
type Deps struct {
	Config   *config.Config
	Personas persona.Store
	Sessions *session.Store
	States   *uistate.Manager
	Tools    *tools.Registry
	Pipeline *pipeline.Service
	Docgen   *docgen.Service
	Registry *ws.Registry
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/", d.handleRoot)
	r.Get("/health", d.handleHealth)
	r.Get("/stats", d.handleStats)

	personaHandler.New(d.Personas).RegisterRoutes(r)
	sessionHandler.New(d.Sessions, d.Personas).RegisterRoutes(r)

	var chatStreamer ws.ChatStreamer
	if d.Pipeline != nil {
		chatStreamer = d.Pipeline
	}
	ws.New(d.Sessions, d.States, chatStreamer, d.Registry).RegisterRoutes(r)

	if d.Pipeline != nil {
		chatHandler.New(d.Pipeline, d.Sessions, d.Personas).RegisterRoutes(r)
		streamHandler.New(d.Pipeline, d.Sessions).RegisterRoutes(r)
	} else {
		r.Post("/chat", unavailable)
		r.Get("/chat/stream", unavailable)
	}

	if d.Docgen != nil {
		docgenHandler.New(d.Docgen, d.Registry).RegisterRoutes(r)
	} else {
		r.Post("/generate-document-from-template", unavailable)
	}

	return r
}

func (d Deps) handleRoot(w http.ResponseWriter, r *http.Request) {
	types := make([]string, 0, 2)
	for _, p := range d.Personas.List() {
		types = append(types, p.Type)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"service":         serviceTitle,
		"status":          "operational",
		"version":         serviceVersion,
		"personas":        types,
		"tools_available": d.Tools.Count() > 0,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (d Deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"service":           serviceName,
		"version":           serviceVersion,
		"openai_configured": d.Config.AI.Enabled(),
		"streaming_enabled": d.Pipeline != nil,
		"tools_enabled":     d.Tools.Count() > 0,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

func (d Deps) handleStats(w http.ResponseWriter, r *http.Request) {
	pipelineStatus := map[string]any{"initialized": false}
	if d.Pipeline != nil {
		pipelineStatus = d.Pipeline.Health()
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"active_sessions":              d.Sessions.ActiveCount(r.Context()),
		"active_websocket_connections": d.Registry.Count(),
		"pipeline_status":              pipelineStatus,
		"timestamp":                    time.Now().UTC().Format(time.RFC3339),
	})
}

func unavailable(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, http.StatusServiceUnavailable, "AI model is not configured")
}
