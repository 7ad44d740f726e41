package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"notably-ai/internal/auth"
	"notably-ai/internal/chat"
	"notably-ai/internal/handlers"
	"notably-ai/internal/maintenance"
	"notably-ai/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatEngine       *chat.Engine
	NoteService      *service.NoteService
	TrialService     *service.TrialService
	MaintenanceJobs  *maintenance.Jobs
	JWTSecret        string
	MaintenanceToken string
	ReembedWindow    time.Duration
	TrialRetention   time.Duration
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(LoggerMiddleware)
	r.Use(auth.Middleware(deps.JWTSecret))

	chatHandler := handlers.NewChatHandler(deps.ChatEngine)
	noteHandler := handlers.NewNoteHandler(deps.NoteService)
	trialHandler := handlers.NewTrialHandler(deps.TrialService)
	maintenanceHandler := handlers.NewMaintenanceHandler(
		deps.MaintenanceJobs, deps.MaintenanceToken, deps.ReembedWindow, deps.TrialRetention)
	healthHandler := handlers.NewHealthHandler(deps.MaintenanceJobs)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/chat", chatHandler)

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", noteHandler.List)
			r.Post("/", noteHandler.Create)
			r.Get("/search", noteHandler.Search)
			r.Put("/{id}", noteHandler.Update)
			r.Delete("/{id}", noteHandler.Delete)
		})

		r.Route("/trial", func(r chi.Router) {
			r.Post("/sync", trialHandler.Sync)
			r.Delete("/sync/{id}", trialHandler.Delete)
			r.Post("/clear", trialHandler.Clear)
		})

		r.Route("/maintenance", func(r chi.Router) {
			r.Get("/ping", maintenanceHandler.Ping)
			r.Post("/reembed", maintenanceHandler.Reembed)
			r.Get("/cleanup", maintenanceHandler.CleanupDryRun)
			r.Post("/cleanup", maintenanceHandler.CleanupExecute)
		})

		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
