// Package monitor runs the polling loop: fetch each tracked account, keep the
// posts not seen before, and drive each through summarize, persist and notify.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Saul-Punybz/tweetwatch/internal/metrics"
	"github.com/Saul-Punybz/tweetwatch/internal/models"
	"github.com/Saul-Punybz/tweetwatch/internal/normalize"
	"github.com/Saul-Punybz/tweetwatch/internal/scraper"
)

const (
	defaultWaitStep     = time.Second
	defaultWaitLogEvery = 30
)

// Fetcher returns the latest posts of an account. It never fails; a failed
// fetch yields an empty list.
type Fetcher interface {
	LatestPosts(ctx context.Context, account string, limit int) []models.RawPost
}

// Store is the durable record of seen posts. Insert logs its own failures.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, p *models.Post)
}

// Summarizer produces a summary, or a placeholder on failure.
type Summarizer interface {
	Summarize(ctx context.Context, p models.Post) string
}

// Notifier delivers a post and reports whether it was acknowledged.
type Notifier interface {
	Notify(ctx context.Context, p models.Post) bool
}

// Archiver keeps an audit copy of a stored post.
type Archiver interface {
	ArchivePost(ctx context.Context, p models.Post) error
}

// Previewer fetches metadata for a linked page; nil means no preview.
type Previewer interface {
	Preview(ctx context.Context, url string) *models.LinkPreview
}

// Config holds the loop's schedule and fetch parameters.
type Config struct {
	Accounts  []string
	Interval  time.Duration
	Limit     int
	PostPause time.Duration
}

// Deps are the loop's collaborators. Archiver, Previewer and Metrics are optional.
type Deps struct {
	Fetcher    Fetcher
	Store      Store
	Summarizer Summarizer
	Notifier   Notifier
	Archiver   Archiver
	Previewer  Previewer
	Metrics    *metrics.Metrics
}

// CycleResult describes one pass over all accounts.
type CycleResult struct {
	ID        string
	Fetched   int
	New       []models.Post
	Processed int
	Duration  time.Duration
}

// Monitor owns the polling schedule and the running flag.
type Monitor struct {
	running atomic.Bool

	accounts  []string
	interval  time.Duration
	limit     int
	postPause time.Duration

	waitStep     time.Duration
	waitLogEvery int

	fetcher    Fetcher
	store      Store
	summarizer Summarizer
	notifier   Notifier
	archiver   Archiver
	previewer  Previewer
	metrics    *metrics.Metrics

	cycles int
}

// New creates a Monitor in the running state.
func New(cfg Config, deps Deps) *Monitor {
	m := &Monitor{
		accounts:     append([]string(nil), cfg.Accounts...),
		interval:     cfg.Interval,
		limit:        cfg.Limit,
		postPause:    cfg.PostPause,
		waitStep:     defaultWaitStep,
		waitLogEvery: defaultWaitLogEvery,
		fetcher:      deps.Fetcher,
		store:        deps.Store,
		summarizer:   deps.Summarizer,
		notifier:     deps.Notifier,
		archiver:     deps.Archiver,
		previewer:    deps.Previewer,
		metrics:      deps.Metrics,
	}
	m.running.Store(true)
	return m
}

// Stop asks the loop to finish. Work already under way completes; no new
// cycle or post is started afterwards.
func (m *Monitor) Stop() {
	if m.running.Swap(false) {
		slog.Info("monitor: stop requested")
	}
}

// Running reports whether the loop has not been asked to stop.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// Run executes cycles until Stop is called or ctx is done. A failing or
// panicking cycle is logged and the next one still runs.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("monitor: started",
		"accounts", m.accounts,
		"interval", m.interval.String(),
		"limit", m.limit,
	)

	for m.Running() && ctx.Err() == nil {
		m.cycles++
		m.runCycleSafe(ctx, m.cycles)

		if !m.Running() {
			break
		}
		m.wait(ctx)
	}

	slog.Info("monitor stopped", "cycles", m.cycles)
}

func (m *Monitor) runCycleSafe(ctx context.Context, n int) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("monitor: cycle panicked", "cycle", n, "panic", r, "stack", string(debug.Stack()))
			m.metrics.CycleDone(metrics.CyclePanic, time.Since(start))
		}
	}()

	slog.Info("monitor: cycle starting", "cycle", n)
	res, err := m.RunCycle(ctx)
	if err != nil {
		slog.Error("monitor: cycle failed", "cycle", n, "cycle_id", res.ID, "err", err)
		m.metrics.CycleDone(metrics.CycleError, time.Since(start))
		return
	}

	status := metrics.CycleOK
	if !m.Running() {
		status = metrics.CycleStopped
	}
	m.metrics.CycleDone(status, res.Duration)
}

// RunCycle performs one pass: fetch every account, collect unseen posts in
// account then fetch order, and run the pipeline for each one sequentially.
// A store lookup error aborts the cycle.
func (m *Monitor) RunCycle(ctx context.Context) (CycleResult, error) {
	res := CycleResult{ID: uuid.NewString()}
	start := time.Now()

	if err := m.collect(ctx, &res); err != nil {
		res.Duration = time.Since(start)
		return res, err
	}

	for i := range res.New {
		if !m.Running() {
			slog.Info("monitor: stop requested, skipping remaining posts",
				"cycle_id", res.ID, "remaining", len(res.New)-i)
			break
		}

		p := &res.New[i]
		if err := m.process(ctx, p); err != nil {
			slog.Error("monitor: post failed", "cycle_id", res.ID, "post_id", p.ID, "account", p.Account, "err", err)
			m.metrics.PostFailed()
			continue
		}

		res.Processed++
		m.metrics.PostProcessed()

		if m.postPause > 0 {
			time.Sleep(m.postPause)
		}
	}

	res.Duration = time.Since(start)
	if len(res.New) > 0 {
		slog.Info("monitor: cycle complete",
			"cycle_id", res.ID,
			"new", len(res.New),
			"processed", res.Processed,
			"duration", res.Duration.String(),
		)
	} else {
		slog.Info("monitor: no new posts", "cycle_id", res.ID, "checked", res.Fetched)
	}

	return res, nil
}

func (m *Monitor) collect(ctx context.Context, res *CycleResult) error {
	seen := make(map[string]bool)

	for _, account := range m.accounts {
		if !m.Running() {
			slog.Info("monitor: stop requested, skipping remaining accounts", "cycle_id", res.ID)
			return nil
		}

		raws := m.fetcher.LatestPosts(ctx, account, m.limit)
		res.Fetched += len(raws)
		m.metrics.Fetched(account, len(raws))

		for _, raw := range raws {
			if !m.Running() {
				return nil
			}

			id := normalize.PostID(raw)
			if id == "" {
				slog.Warn("monitor: post without id skipped", "account", account)
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true

			exists, err := m.store.Exists(ctx, id)
			if err != nil {
				return fmt.Errorf("monitor: check post %s: %w", id, err)
			}
			if exists {
				continue
			}

			res.New = append(res.New, normalize.Normalize(raw, account))
			m.metrics.NewPost(account)
			slog.Info("monitor: new post", "cycle_id", res.ID, "post_id", id, "account", account)
		}
	}
	return nil
}

// process runs preview, summary, persistence, archive and notification for
// one post. A panic in any stage is returned as an error.
func (m *Monitor) process(ctx context.Context, p *models.Post) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if m.previewer != nil {
		if link := scraper.FirstLink(*p); link != "" {
			p.Preview = m.previewer.Preview(ctx, link)
		}
	}

	p.Summary = m.summarizer.Summarize(ctx, *p)

	m.store.Insert(ctx, p)

	if m.archiver != nil {
		if err := m.archiver.ArchivePost(ctx, *p); err != nil {
			slog.Warn("monitor: archive failed", "post_id", p.ID, "err", err)
		}
	}

	ok := m.notifier.Notify(ctx, *p)
	m.metrics.Notified(ok)
	if !ok {
		slog.Warn("monitor: notification not delivered", "post_id", p.ID)
	}

	return nil
}

// wait sleeps up to one interval in waitStep increments, returning early once
// the loop is stopped or ctx is done.
func (m *Monitor) wait(ctx context.Context) {
	steps := int(m.interval / m.waitStep)
	if steps < 1 {
		steps = 1
	}

	slog.Info("monitor: waiting for next cycle", "interval", m.interval.String())

	timer := time.NewTimer(m.waitStep)
	defer timer.Stop()

	for i := 0; i < steps; i++ {
		if !m.Running() {
			return
		}
		if m.waitLogEvery > 0 && i%m.waitLogEvery == 0 && i > 0 {
			remaining := time.Duration(steps-i) * m.waitStep
			slog.Info("monitor: next cycle in", "remaining", remaining.String())
		}

		if i > 0 {
			timer.Reset(m.waitStep)
		}
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
