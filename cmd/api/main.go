package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"time"

	"notably-ai/internal/chat"
	"notably-ai/internal/config"
	"notably-ai/internal/http"
	"notably-ai/internal/llm"
	"notably-ai/internal/maintenance"
	"notably-ai/internal/noteindex"
	"notably-ai/internal/service"
	"notably-ai/internal/storage"
	"notably-ai/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	noteRepo := storage.NewNoteRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbedding, err := embedder.EmbedText(ctx, "test")
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbedding) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbedding))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// Note index over the vector store
	index := noteindex.New(vectorStore, cfg.QdrantCollection, cfg.QdrantVectorSize)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	// Chat pipeline
	assembler := chat.NewAssembler(noteRepo, index)
	engine := chat.NewEngine(embedder, assembler, llmClient, chat.Persona(cfg.ChatPersona))
	slog.Info("Chat engine initialized", "persona", cfg.ChatPersona)

	// Services
	noteService := service.NewNoteService(noteRepo, index, embedder)
	trialService := service.NewTrialService(index, embedder)

	// Maintenance jobs
	jobs := maintenance.NewJobs(noteRepo, index, embedder, cfg.ReembedConcurrency)

	// Create router with dependencies
	deps := &http.Deps{
		ChatEngine:       engine,
		NoteService:      noteService,
		TrialService:     trialService,
		MaintenanceJobs:  jobs,
		JWTSecret:        cfg.JWTSecret,
		MaintenanceToken: cfg.MaintenanceToken,
		ReembedWindow:    time.Duration(cfg.ReembedWindowDays) * 24 * time.Hour,
		TrialRetention:   time.Duration(cfg.TrialRetentionDays) * 24 * time.Hour,
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
