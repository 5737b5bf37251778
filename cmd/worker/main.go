// Command worker runs the account monitor. It polls the tracked accounts,
// summarizes and stores every new post, and pushes it to the DingTalk group.
// Optional jobs (daily digest, metrics endpoint) run alongside the loop.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Saul-Punybz/tweetwatch/internal/ai"
	"github.com/Saul-Punybz/tweetwatch/internal/config"
	"github.com/Saul-Punybz/tweetwatch/internal/db"
	"github.com/Saul-Punybz/tweetwatch/internal/logger"
	"github.com/Saul-Punybz/tweetwatch/internal/metrics"
	"github.com/Saul-Punybz/tweetwatch/internal/models"
	"github.com/Saul-Punybz/tweetwatch/internal/monitor"
	"github.com/Saul-Punybz/tweetwatch/internal/normalize"
	"github.com/Saul-Punybz/tweetwatch/internal/notify"
	"github.com/Saul-Punybz/tweetwatch/internal/scraper"
	"github.com/Saul-Punybz/tweetwatch/internal/storage"
	"github.com/Saul-Punybz/tweetwatch/internal/twitterapi"
)

func main() {
	config.LoadDotEnv()
	slog.SetDefault(logger.New("worker"))

	cfg, err := config.LoadWorker()
	if err != nil {
		slog.Error("worker: invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.Info("worker: starting",
		"accounts", cfg.Monitor.Accounts,
		"interval", cfg.Monitor.Interval.String(),
		"ai_provider", cfg.AI.Provider,
	)

	// Root context. It is only cancelled on a second signal so that the
	// post in flight at the first one can finish.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	pool, err := db.Connect(connectCtx, cfg.DB)
	connectCancel()
	if err != nil {
		slog.Error("worker: database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	posts := models.NewPostStore(pool)
	summarizer := ai.NewSummarizer(ai.NewProvider(cfg.AI))
	dingtalk := notify.NewDingTalk(cfg.DingTalk)
	m := metrics.New()

	deps := monitor.Deps{
		Fetcher:    twitterapi.NewClient(cfg.Twitter.BaseURL, cfg.Twitter.APIKey),
		Store:      posts,
		Summarizer: summarizer,
		Notifier:   dingtalk,
		Metrics:    m,
	}

	storageClient, err := storage.NewClient(ctx, cfg.S3)
	if err != nil {
		slog.Warn("worker: storage client creation failed, archive disabled", "err", err)
	} else if storageClient.Configured() {
		deps.Archiver = storageClient
	}

	if cfg.Features.LinkPreview {
		deps.Previewer = scraper.NewScraper()
	}

	mon := monitor.New(monitor.Config{
		Accounts:  cfg.Monitor.Accounts,
		Interval:  cfg.Monitor.Interval,
		Limit:     cfg.Monitor.Limit,
		PostPause: cfg.Monitor.PostPause,
	}, deps)

	var wg sync.WaitGroup

	// Metrics and readiness endpoint.
	var metricsSrv *http.Server
	if cfg.Features.MetricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:              cfg.Features.MetricsAddr,
			Handler:           m.Router(mon.Running),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("worker: metrics server starting", "addr", cfg.Features.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker: metrics server error", "err", err)
			}
		}()
	}

	// Daily digest, scheduled in local (UTC+8) time.
	var c *cron.Cron
	if cfg.Features.DigestCron != "" {
		c = cron.New(cron.WithLocation(normalize.LocalZone))
		_, err = c.AddFunc(cfg.Features.DigestCron, func() {
			wg.Add(1)
			defer wg.Done()

			jobCtx, jobCancel := context.WithTimeout(ctx, 10*time.Minute)
			defer jobCancel()

			slog.Info("cron: daily digest triggered")
			monitor.RunDailyDigest(jobCtx, posts, summarizer, dingtalk)
		})
		if err != nil {
			slog.Error("worker: add digest cron", "spec", cfg.Features.DigestCron, "err", err)
			os.Exit(1)
		}
		c.Start()
		slog.Info("worker: cron scheduler started", "jobs", len(c.Entries()))
	}

	// ── Graceful Shutdown ──────────────────────────────────────────
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("worker: received shutdown signal, finishing current post", "signal", sig.String())
		mon.Stop()

		sig = <-sigCh
		slog.Warn("worker: second signal, aborting in-flight work", "signal", sig.String())
		cancel()
	}()

	mon.Run(ctx)

	if c != nil {
		slog.Info("worker: stopping cron scheduler")
		cronCtx := c.Stop()
		select {
		case <-cronCtx.Done():
			slog.Info("worker: cron scheduler stopped")
		case <-time.After(30 * time.Second):
			slog.Warn("worker: cron scheduler stop timed out")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(60 * time.Second):
		slog.Warn("worker: timed out waiting for in-flight jobs")
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("worker: metrics shutdown error", "err", err)
		}
		shutdownCancel()
	}

	slog.Info("worker: shutdown complete")
}
