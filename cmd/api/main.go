package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/antsa-au/haystack-service/internal/config"
	"github.com/antsa-au/haystack-service/internal/handler"
	"github.com/antsa-au/haystack-service/internal/handler/ws"
	"github.com/antsa-au/haystack-service/internal/model/persona"
	"github.com/antsa-au/haystack-service/internal/platform"
	"github.com/antsa-au/haystack-service/internal/service/ai"
	"github.com/antsa-au/haystack-service/internal/service/docgen"
	"github.com/antsa-au/haystack-service/internal/service/pipeline"
	"github.com/antsa-au/haystack-service/internal/service/session"
	"github.com/antsa-au/haystack-service/internal/service/uistate"
	"github.com/antsa-au/haystack-service/internal/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	redisClient := connectRedis(ctx, cfg.Redis)

	personaStore := persona.NewMemoryStore(persona.Seed())
	sessionStore := session.NewStore(redisClient, cfg.Pipeline.SessionTimeout)
	stateManager := uistate.NewManager(redisClient)
	backend := platform.New(cfg.Platform.BaseURL)
	registry := tools.NewRegistry(personaStore, backend, stateManager)

	sweeper := cron.New()
	if err := sessionStore.RegisterSweeper(sweeper); err != nil {
		log.Fatalf("failed to register session sweeper: %v", err)
	}
	if err := stateManager.RegisterSweeper(sweeper); err != nil {
		log.Fatalf("failed to register ui state sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize AI-backed services. The REST surface stays up without them;
	// chat and document routes answer 503 until the model is configured.
	var (
		pipelineSvc *pipeline.Service
		docgenSvc   *docgen.Service
	)
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, personaStore, cfg.AI, registry)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality, check OPENAI_API_KEY and OPENAI_MODEL")
		} else {
			pipelineSvc = pipeline.NewService(personaStore, sessionStore, aiService, registry, stateManager, cfg.Pipeline)
			docgenSvc, err = docgen.NewService(ctx, backend, aiService.BaseModel(), docgen.Config{})
			if err != nil {
				log.Printf("warning: failed to initialize document generation: %v", err)
			}
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("OpenAI credentials not configured, chat and document generation disabled")
	}

	connections := ws.NewRegistry()

	router := handler.NewRouter(handler.Deps{
		Config:   cfg,
		Personas: personaStore,
		Sessions: sessionStore,
		States:   stateManager,
		Tools:    registry,
		Pipeline: pipelineSvc,
		Docgen:   docgenSvc,
		Registry: connections,
	})

	startServer(ctx, cfg.Server, router)
}

// connectRedis probes the configured Redis. On failure the stores run on
// their in-memory fallback, which loses sessions across restarts.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Printf("warning: invalid REDIS_URL %q: %v", cfg.URL, err)
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("warning: redis unreachable at %s, using in-memory session storage: %v", opts.Addr, err)
		client.Close()
		return nil
	}

	log.Printf("connected to redis at %s", opts.Addr)
	return client
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Haystack AU service listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
