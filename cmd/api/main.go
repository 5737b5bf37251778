// Command api serves the stored posts over a read-only HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Saul-Punybz/tweetwatch/internal/config"
	"github.com/Saul-Punybz/tweetwatch/internal/db"
	"github.com/Saul-Punybz/tweetwatch/internal/handlers"
	"github.com/Saul-Punybz/tweetwatch/internal/logger"
	"github.com/Saul-Punybz/tweetwatch/internal/middleware"
	"github.com/Saul-Punybz/tweetwatch/internal/models"
	"github.com/Saul-Punybz/tweetwatch/internal/storage"
)

func main() {
	config.LoadDotEnv()
	slog.SetDefault(logger.New("api"))

	cfg, err := config.LoadAPI()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	postsHandler := &handlers.PostsHandler{
		Posts: models.NewPostStore(pool),
	}

	storageClient, err := storage.NewClient(ctx, cfg.S3)
	if err != nil {
		slog.Warn("S3 storage not available for archive lookups", "err", err)
	} else {
		postsHandler.Archive = storageClient
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization"},
		MaxAge:         300,
	}))

	// Public routes.
	r.Get("/api/health", handlers.Health)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.TokenHash))

		r.Get("/api/posts", postsHandler.ListPosts)
		r.Get("/api/posts/{id}", postsHandler.GetPost)
		r.Get("/api/posts/{id}/archive", postsHandler.GetArchive)
		r.Get("/api/stats", postsHandler.Stats)
	})

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	slog.Info("server stopped")
}
