package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/chunkenizer/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/chunkenizer/internal/api/middlewares"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds every route under /api.
func NewRouter(a *App) http.Handler {
	docHandler := handlers.NewDocumentHandler(a.Ingest, a.Documents)
	searchHandler := handlers.NewSearchHandler(a.Search)
	systemHandler := handlers.NewSystemHandler(a.Documents, a.Embedder.ModelName())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", systemHandler.Health)
		api.Get("/stats", systemHandler.Stats)

		// Ingestion embeds every chunk and can run long, so it gets a
		// bigger budget than reads.
		api.With(
			middleware.Timeout(10*time.Minute),
			appMiddleware.MaxBodyBytes(int64(a.Config.MaxUploadMB)<<20+1<<20),
		).Post("/documents", docHandler.UploadDocument)

		api.Group(func(read chi.Router) {
			read.Use(middleware.Timeout(60 * time.Second))
			read.Get("/documents", docHandler.ListDocuments)
			read.Get("/documents/{id}", docHandler.GetDocument)
			read.Get("/documents/{id}/raw", docHandler.DownloadDocument)
			read.Delete("/documents/{id}", docHandler.DeleteDocument)
			read.Post("/search", searchHandler.Search)
		})
	})

	return r
}

func NewServer(a *App) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           NewRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
