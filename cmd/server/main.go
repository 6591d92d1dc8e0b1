package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/unalkalkan/chapter-analyzer/internal/api"
	"github.com/unalkalkan/chapter-analyzer/internal/analysis"
	"github.com/unalkalkan/chapter-analyzer/internal/book"
	"github.com/unalkalkan/chapter-analyzer/internal/config"
	"github.com/unalkalkan/chapter-analyzer/internal/health"
	"github.com/unalkalkan/chapter-analyzer/internal/parser"
	"github.com/unalkalkan/chapter-analyzer/internal/pipeline"
	"github.com/unalkalkan/chapter-analyzer/internal/provider"
	"github.com/unalkalkan/chapter-analyzer/internal/segmentation"
	"github.com/unalkalkan/chapter-analyzer/internal/storage"
	"github.com/unalkalkan/chapter-analyzer/pkg/types"
)

const version = "0.1.0-milestone4"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/dev.example.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting TwelveReader Server v%s", version)
	log.Printf("Configuration loaded from: %s", *configPath)

	// Initialize storage adapter
	storageAdapter, err := storage.NewAdapter(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create storage adapter: %v", err)
	}
	defer storageAdapter.Close()
	log.Printf("Storage adapter initialized: %s", cfg.Storage.Adapter)

	// Initialize provider registry
	providerRegistry := provider.NewRegistry()
	if err := providerRegistry.InitializeProviders(cfg.Providers); err != nil {
		log.Fatalf("Failed to initialize providers: %v", err)
	}
	defer providerRegistry.Close()

	log.Printf("Providers initialized:")
	log.Printf("  LLM: %v", providerRegistry.ListLLM())
	log.Printf("  TTS: %v", providerRegistry.ListTTS())
	log.Printf("  OCR: %v", providerRegistry.ListOCR())

	// Initialize book repository
	bookRepo := book.NewRepository(storageAdapter)
	log.Printf("Book repository initialized")

	// Initialize parser factory
	parserFactory := parser.NewFactory()
	log.Printf("Parser factory initialized")

	// Initialize the analysis pipeline: a local word list for explicit
	// attribution, prompt templates for the two LLM-backed stages, and an
	// Ollama client to run them against.
	speechVerbs, err := analysis.LoadSpeechVerbs(cfg.Analysis.SpeechVerbsPath)
	if err != nil {
		log.Printf("Falling back to built-in speech verb list: %v", err)
	}

	aiAttributionSystem := mustReadPrompt(cfg.Analysis.PromptDir, "ai_attribution_system.txt")
	aiAttributionUser := mustReadPrompt(cfg.Analysis.PromptDir, "ai_attribution_user.txt")
	emotionSystem := mustReadPrompt(cfg.Analysis.PromptDir, "emotion_system.txt")
	emotionUser := mustReadPrompt(cfg.Analysis.PromptDir, "emotion_user.txt")

	analysisLLM, err := buildAnalysisLLM(cfg, providerRegistry)
	if err != nil {
		log.Fatalf("Failed to initialize analysis LLM backend: %v", err)
	}

	orchestrator := pipeline.NewOrchestrator(speechVerbs, analysisLLM, aiAttributionSystem, aiAttributionUser, emotionSystem, emotionUser)
	segmentationSvc := segmentation.NewService(orchestrator)

	// Initialize health checks
	healthHandler := health.NewHandler(version)

	// Register health checks
	healthHandler.Register("storage", func(ctx context.Context) (health.Status, error) {
		// Check if storage is accessible
		exists, err := storageAdapter.Exists(ctx, ".healthcheck")
		if err != nil {
			return health.StatusUnhealthy, err
		}
		_ = exists // Ignore result, just checking connectivity
		return health.StatusHealthy, nil
	})

	healthHandler.Register("providers", func(ctx context.Context) (health.Status, error) {
		// Check if at least one provider of each type is registered
		if len(providerRegistry.ListLLM()) == 0 && len(providerRegistry.ListTTS()) == 0 {
			return health.StatusDegraded, fmt.Errorf("no providers registered")
		}
		return health.StatusHealthy, nil
	})

	healthHandler.Register("analysis", func(ctx context.Context) (health.Status, error) {
		if cfg.Analysis.ModelName == "" {
			return health.StatusDegraded, fmt.Errorf("no analysis model configured")
		}
		return health.StatusHealthy, nil
	})

	// Set up HTTP server and routes
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health/live", healthHandler.LivenessHandler())
	mux.HandleFunc("/health/ready", healthHandler.ReadinessHandler())
	mux.HandleFunc("/health", healthHandler.HealthHandler())

	// API endpoints (stubs for now)
	mux.HandleFunc("/api/v1/info", infoHandler(version, cfg))
	mux.HandleFunc("/api/v1/providers", providersHandler(providerRegistry))

	// Book API endpoints
	bookHandler := api.NewBookHandler(bookRepo, parserFactory, providerRegistry, storageAdapter, segmentationSvc)
	mux.HandleFunc("/api/v1/books", bookHandler.UploadBook)
	mux.HandleFunc("/api/v1/books/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if strings.HasSuffix(path, "/status") {
			bookHandler.GetBookStatus(w, r)
		} else if strings.HasSuffix(path, "/segments") {
			bookHandler.ListSegments(w, r)
		} else if strings.HasSuffix(path, "/voice-map") {
			if r.Method == http.MethodPost {
				bookHandler.SetVoiceMap(w, r)
			} else {
				bookHandler.GetVoiceMap(w, r)
			}
		} else if strings.HasSuffix(path, "/personas") {
			bookHandler.GetPersonas(w, r)
		} else if strings.HasSuffix(path, "/characters") {
			bookHandler.GetCharacters(w, r)
		} else if strings.HasSuffix(path, "/report") {
			bookHandler.GetReport(w, r)
		} else if strings.HasSuffix(path, "/synthesize") {
			bookHandler.SynthesizeBook(w, r)
		} else if strings.HasSuffix(path, "/stream") {
			bookHandler.StreamSegments(w, r)
		} else if strings.HasSuffix(path, "/download") {
			bookHandler.DownloadBook(w, r)
		} else if strings.Contains(path, "/audio/") {
			bookHandler.GetAudio(w, r)
		} else {
			bookHandler.GetBook(w, r)
		}
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// infoHandler returns basic server information
func infoHandler(version string, cfg *types.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":"%s","storage_adapter":"%s"}`, version, cfg.Storage.Adapter)
	}
}

// providersHandler returns information about registered providers
func providersHandler(registry *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"llm":%v,"tts":%v,"ocr":%v}`,
			toJSON(registry.ListLLM()),
			toJSON(registry.ListTTS()),
			toJSON(registry.ListOCR()))
	}
}

// buildAnalysisLLM selects the LLM backend for the AI attribution and
// emotion pipeline stages. The default targets Ollama directly; setting
// analysis.backend to a configured providers.llm name instead reuses
// that registered provider (e.g. an OpenAI-compatible endpoint) as long
// as it implements analysis.LLM's Generate method.
func buildAnalysisLLM(cfg *types.Config, registry *provider.Registry) (analysis.LLM, error) {
	backend := cfg.Analysis.Backend
	if backend == "" || backend == "ollama" {
		ollamaLLM, err := provider.NewOllamaLLM(cfg.Analysis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		log.Printf("Analysis pipeline targeting ollama model %q at %s", cfg.Analysis.ModelName, cfg.Analysis.OllamaBaseURL)
		return ollamaLLM, nil
	}

	llmProvider, err := registry.GetLLM(backend)
	if err != nil {
		return nil, fmt.Errorf("analysis backend %q not found in providers.llm: %w", backend, err)
	}
	analysisLLM, ok := llmProvider.(analysis.LLM)
	if !ok {
		return nil, fmt.Errorf("provider %q cannot back the analysis pipeline (no Generate method)", backend)
	}
	log.Printf("Analysis pipeline targeting provider %q", backend)
	return analysisLLM, nil
}

// mustReadPrompt reads a prompt template from the configured prompt
// directory. A missing file is fatal at startup since the corresponding
// analysis stage has no sensible text to fall back to.
func mustReadPrompt(dir, name string) string {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read prompt template %s: %v", path, err)
	}
	return string(data)
}

func toJSON(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	result := "["
	for i, item := range items {
		if i > 0 {
			result += ","
		}
		result += fmt.Sprintf(`"%s"`, item)
	}
	result += "]"
	return result
}
