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

	"github.com/shopquery/backend/internal/config"
	"github.com/shopquery/backend/internal/handler"
	"github.com/shopquery/backend/internal/janitor"
	"github.com/shopquery/backend/internal/service/conversation"
	"github.com/shopquery/backend/internal/service/llm"
	"github.com/shopquery/backend/internal/service/orchestrator"
	"github.com/shopquery/backend/internal/service/retrieval"
	"github.com/shopquery/backend/internal/service/websearch"
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

	sessions := conversation.NewStore()

	gateway := buildGateway(ctx, cfg.Models)
	retriever := buildRetriever(ctx, cfg)
	searcher := buildSearcher(cfg.WebSearch)

	orch := orchestrator.New(sessions, retriever, searcher, gateway, orchestrator.Config{
		TopK:                cfg.Retrieval.TopK,
		PromptSizeLimit:     cfg.Session.PromptSizeLimit,
		CollaboratorTimeout: cfg.Session.CollaboratorTimeout,
		FallbackModel:       cfg.Models.FallbackModel,
	})

	sweeper := janitor.New(sessions, cfg.Session.TTL, cfg.Session.SweepSchedule)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("failed to start session janitor: %v", err)
	}
	defer sweeper.Stop()

	router := handler.NewRouter(sessions, orch, gateway, cfg.Session.TTL)

	startServer(ctx, cfg.Server, router)
}

// buildGateway registers every backend whose credentials are present. A
// backend with missing credentials is simply absent from the registry.
func buildGateway(ctx context.Context, cfg config.ModelsConfig) *llm.Gateway {
	gateway := llm.NewGateway(cfg.FailureThreshold, cfg.InvokeTimeout)

	if cfg.Gemini.Enabled() {
		backend, err := llm.NewGeminiBackend(ctx, llm.GeminiConfig{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
			MaxTokens:   cfg.Gemini.MaxTokens,
		})
		if err != nil {
			log.Printf("warning: failed to initialize gemini backend: %v", err)
		} else {
			gateway.Register(backend)
			log.Println("gemini backend registered")
		}
	} else {
		log.Println("GEMINI_TOKEN not set, gemini backend unavailable")
	}

	if cfg.HuggingFace.Enabled() {
		gateway.Register(llm.NewHuggingFaceBackend(llm.HuggingFaceConfig{
			Token:       cfg.HuggingFace.Token,
			Model:       cfg.HuggingFace.Model,
			Temperature: cfg.HuggingFace.Temperature,
			MaxTokens:   cfg.HuggingFace.MaxTokens,
		}))
		log.Println("huggingface backend registered")
	} else {
		log.Println("HF_TOKEN not set, huggingface backend unavailable")
	}

	if cfg.Ark.Enabled() {
		backend, err := llm.NewArkBackend(ctx, llm.ArkConfig{
			APIKey:      cfg.Ark.APIKey,
			Model:       cfg.Ark.Model,
			BaseURL:     cfg.Ark.BaseURL,
			Region:      cfg.Ark.Region,
			Temperature: cfg.Ark.Temperature,
			MaxTokens:   cfg.Ark.MaxTokens,
		})
		if err != nil {
			log.Printf("warning: failed to initialize ark backend: %v", err)
		} else {
			gateway.Register(backend)
			log.Println("ark backend registered")
		}
	} else {
		log.Println("ARK_API_KEY or ARK_MODEL not set, ark backend unavailable")
	}

	return gateway
}

// buildRetriever wires the product index when both the index address and
// the embedding credential are configured.
func buildRetriever(ctx context.Context, cfg *config.Config) retrieval.Retriever {
	if !cfg.Retrieval.Enabled() {
		log.Println("QDRANT_URL not set, semantic retrieval disabled")
		return nil
	}
	if !cfg.Models.Gemini.Enabled() {
		log.Println("GEMINI_TOKEN not set, cannot embed queries, semantic retrieval disabled")
		return nil
	}

	embedder, err := retrieval.NewGeminiEmbedder(ctx, cfg.Models.Gemini.APIKey, cfg.Models.Gemini.EmbedModel)
	if err != nil {
		log.Printf("warning: failed to initialize query embedder: %v", err)
		return nil
	}

	retriever, err := retrieval.NewQdrantRetriever(retrieval.QdrantConfig{
		URL:        cfg.Retrieval.QdrantURL,
		Collection: cfg.Retrieval.Collection,
		APIKey:     cfg.Retrieval.QdrantAPIKey,
	}, embedder)
	if err != nil {
		log.Printf("warning: failed to connect to qdrant: %v", err)
		return nil
	}

	log.Printf("semantic retrieval enabled, collection=%s", cfg.Retrieval.Collection)
	return retriever
}

func buildSearcher(cfg config.WebSearchConfig) websearch.Searcher {
	if !cfg.Enabled() {
		log.Println("SERPAPI_KEY not set, web search disabled")
		return nil
	}
	return websearch.NewSerpAPIClient(cfg.SerpAPIKey)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("shopquery backend listening on %s", addr)
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
