package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
	"github.com/Saul-Punybz/tweetwatch/internal/storage"
)

// PostReader is the read side of the post store.
type PostReader interface {
	List(ctx context.Context, f models.PostFilter) ([]models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	CountByAccount(ctx context.Context, since time.Time) ([]models.AccountCount, error)
}

// ArchiveReader fetches archived raw records.
type ArchiveReader interface {
	Configured() bool
	GetArchive(ctx context.Context, account, postID string) (*storage.Archive, error)
}

// PostsHandler groups the read-only post endpoints.
type PostsHandler struct {
	Posts   PostReader
	Archive ArchiveReader
}

// ListPosts handles GET /api/posts?account=x&limit=50&offset=0.
func (h *PostsHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	posts, err := h.Posts.List(r.Context(), models.PostFilter{
		Account: r.URL.Query().Get("account"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		slog.Error("list posts", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if posts == nil {
		posts = []models.Post{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  posts,
		"count":  len(posts),
		"limit":  limit,
		"offset": offset,
	})
}

// GetPost handles GET /api/posts/{id}.
func (h *PostsHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetArchive handles GET /api/posts/{id}/archive and returns the raw record
// kept in object storage.
func (h *PostsHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil || !h.Archive.Configured() {
		writeError(w, http.StatusNotFound, "archive not configured")
		return
	}

	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	archive, err := h.Archive.GetArchive(r.Context(), p.Account, p.ID)
	if err != nil {
		slog.Warn("get archive", "post_id", p.ID, "err", err)
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}

	writeJSON(w, http.StatusOK, archive)
}

// Stats handles GET /api/stats?hours=24.
func (h *PostsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	counts, err := h.Posts.CountByAccount(r.Context(), since)
	if err != nil {
		slog.Error("post stats", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if counts == nil {
		counts = []models.AccountCount{}
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hours":    hours,
		"since":    since.UTC(),
		"total":    total,
		"accounts": counts,
	})
}

func (h *PostsHandler) lookup(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return nil, false
	}

	p, err := h.Posts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return nil, false
		}
		slog.Error("get post", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return p, true
}
