package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = errors.New("not found")

// RawPost is a post object exactly as returned by the search API.
type RawPost map[string]any

// LinkPreview describes the page behind the first link in a post.
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Post is the canonical form of a monitored post.
type Post struct {
	ID                string         `json:"id"`
	Account           string         `json:"account"`
	Text              string         `json:"text"`
	CreatedAtLocal    string         `json:"created_at_local"`
	CreatedAtRaw      string         `json:"created_at_raw"`
	Likes             int64          `json:"likes"`
	Retweets          int64          `json:"retweets"`
	Replies           int64          `json:"replies"`
	Quotes            int64          `json:"quotes"`
	Views             int64          `json:"views"`
	Bookmarks         int64          `json:"bookmarks"`
	Entities          map[string]any `json:"entities"`
	Attachments       map[string]any `json:"attachments"`
	Geo               map[string]any `json:"geo"`
	Source            string         `json:"source"`
	Lang              string         `json:"lang"`
	Sensitive         bool           `json:"sensitive"`
	IsReply           bool           `json:"is_reply"`
	InReplyToID       string         `json:"in_reply_to_id,omitempty"`
	ConversationID    string         `json:"conversation_id,omitempty"`
	InReplyToUserID   string         `json:"in_reply_to_user_id,omitempty"`
	InReplyToUsername string         `json:"in_reply_to_username,omitempty"`
	DisplayTextRange  []any          `json:"display_text_range,omitempty"`
	Author            map[string]any `json:"author,omitempty"`
	URL               string         `json:"url"`
	Preview           *LinkPreview   `json:"preview,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	Raw               RawPost        `json:"raw,omitempty"`
	StoredAt          time.Time      `json:"stored_at"`
}

// AuthorName returns the best display handle for the post's author.
func (p Post) AuthorName() string {
	if p.Author != nil {
		for _, key := range []string{"userName", "screen_name", "username", "name"} {
			if v, ok := p.Author[key].(string); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return p.Account
}

// PostFilter narrows a post listing.
type PostFilter struct {
	Account string
	Limit   int
	Offset  int
}

// AccountCount is the number of posts stored for one account.
type AccountCount struct {
	Account string `json:"account"`
	Count   int    `json:"count"`
}

// PostStore provides data access methods for posts.
type PostStore struct {
	pool *pgxpool.Pool
}

// NewPostStore creates a new PostStore.
func NewPostStore(pool *pgxpool.Pool) *PostStore {
	return &PostStore{pool: pool}
}

// Exists checks whether a post with the given id is already stored.
func (s *PostStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM posts WHERE post_id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("post exists: %w", err)
	}
	return exists, nil
}

// Insert stores a post and never fails outward. A post that is already stored
// is logged as a warning, any other failure as an error.
func (s *PostStore) Insert(ctx context.Context, p *Post) {
	err := s.Create(ctx, p)
	switch {
	case err == nil:
		slog.Info("post store: saved", "post_id", p.ID, "account", p.Account)
	case IsDuplicate(err):
		slog.Warn("post store: already stored", "post_id", p.ID)
	default:
		slog.Error("post store: insert failed", "post_id", p.ID, "err", err)
	}
}

// Create inserts a new post and sets StoredAt.
func (s *PostStore) Create(ctx context.Context, p *Post) error {
	entities, err := marshalObject(p.Entities, true)
	if err != nil {
		return fmt.Errorf("post create: marshal entities: %w", err)
	}
	attachments, err := marshalObject(p.Attachments, true)
	if err != nil {
		return fmt.Errorf("post create: marshal attachments: %w", err)
	}
	geo, err := marshalObject(p.Geo, true)
	if err != nil {
		return fmt.Errorf("post create: marshal geo: %w", err)
	}
	author, err := marshalObject(p.Author, false)
	if err != nil {
		return fmt.Errorf("post create: marshal author: %w", err)
	}
	raw, err := marshalObject(p.Raw, false)
	if err != nil {
		return fmt.Errorf("post create: marshal raw: %w", err)
	}
	var textRange []byte
	if p.DisplayTextRange != nil {
		if textRange, err = json.Marshal(p.DisplayTextRange); err != nil {
			return fmt.Errorf("post create: marshal display range: %w", err)
		}
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO posts (post_id, account, text, source, retweet_count, reply_count,
		                   like_count, quote_count, view_count, bookmark_count,
		                   created_at_local, created_at_raw, lang, is_reply,
		                   in_reply_to_id, conversation_id, display_text_range,
		                   in_reply_to_user_id, in_reply_to_username, possibly_sensitive,
		                   entities, attachments, geo, url, author, raw, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING stored_at
	`, p.ID, p.Account, p.Text, p.Source, p.Retweets, p.Replies,
		p.Likes, p.Quotes, p.Views, p.Bookmarks,
		p.CreatedAtLocal, p.CreatedAtRaw, p.Lang, p.IsReply,
		p.InReplyToID, p.ConversationID, textRange,
		p.InReplyToUserID, p.InReplyToUsername, p.Sensitive,
		entities, attachments, geo, p.URL, author, raw, p.Summary,
	).Scan(&p.StoredAt)
	if err != nil {
		return fmt.Errorf("post create: %w", err)
	}
	return nil
}

// GetByID returns a single post by its id.
func (s *PostStore) GetByID(ctx context.Context, id string) (*Post, error) {
	row := s.pool.QueryRow(ctx, selectPosts+` WHERE post_id = $1`, id)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("post get: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("post get: %w", err)
	}
	return p, nil
}

// List returns posts newest first, optionally for a single account.
func (s *PostStore) List(ctx context.Context, f PostFilter) ([]Post, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := selectPosts
	args := []any{}
	if f.Account != "" {
		args = append(args, strings.TrimPrefix(f.Account, "@"))
		query += ` WHERE account = $1`
	}
	args = append(args, f.Limit, f.Offset)
	query += ` ORDER BY stored_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	return s.queryPosts(ctx, "post list", query, args...)
}

// ListSince returns posts stored at or after since, oldest first.
func (s *PostStore) ListSince(ctx context.Context, since time.Time) ([]Post, error) {
	return s.queryPosts(ctx, "post list since",
		selectPosts+` WHERE stored_at >= $1 ORDER BY stored_at ASC`, since)
}

// CountByAccount returns per-account post counts stored since the given time.
func (s *PostStore) CountByAccount(ctx context.Context, since time.Time) ([]AccountCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account, COUNT(*)
		FROM posts
		WHERE stored_at >= $1
		GROUP BY account
		ORDER BY COUNT(*) DESC, account
	`, since)
	if err != nil {
		return nil, fmt.Errorf("post count by account: %w", err)
	}
	defer rows.Close()

	var counts []AccountCount
	for rows.Next() {
		var c AccountCount
		if err := rows.Scan(&c.Account, &c.Count); err != nil {
			return nil, fmt.Errorf("post count by account: scan: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *PostStore) queryPosts(ctx context.Context, op, query string, args ...any) ([]Post, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

const selectPosts = `
	SELECT post_id, account, text, source, retweet_count, reply_count, like_count,
	       quote_count, view_count, bookmark_count, created_at_local, created_at_raw,
	       lang, is_reply, in_reply_to_id, conversation_id, display_text_range,
	       in_reply_to_user_id, in_reply_to_username, possibly_sensitive,
	       entities, attachments, geo, url, author, raw, summary, stored_at
	FROM posts`

// scannable is an interface for pgx Row and Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanPost(row scannable) (*Post, error) {
	var p Post
	var textRange, entities, attachments, geo, author, raw []byte
	if err := row.Scan(
		&p.ID, &p.Account, &p.Text, &p.Source, &p.Retweets, &p.Replies, &p.Likes,
		&p.Quotes, &p.Views, &p.Bookmarks, &p.CreatedAtLocal, &p.CreatedAtRaw,
		&p.Lang, &p.IsReply, &p.InReplyToID, &p.ConversationID, &textRange,
		&p.InReplyToUserID, &p.InReplyToUsername, &p.Sensitive,
		&entities, &attachments, &geo, &p.URL, &author, &raw, &p.Summary, &p.StoredAt,
	); err != nil {
		return nil, err
	}
	p.Entities = unmarshalObject(entities)
	p.Attachments = unmarshalObject(attachments)
	p.Geo = unmarshalObject(geo)
	p.Author = unmarshalObject(author)
	if raw := unmarshalObject(raw); raw != nil {
		p.Raw = RawPost(raw)
	}
	if len(textRange) > 0 {
		_ = json.Unmarshal(textRange, &p.DisplayTextRange)
	}
	return &p, nil
}

// IsDuplicate reports whether err is a primary key or unique violation.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// marshalObject encodes a JSON object column. A nil map becomes SQL NULL, or
// an empty object when emptyIfNil is set.
func marshalObject[M ~map[string]any](m M, emptyIfNil bool) ([]byte, error) {
	if m == nil {
		if emptyIfNil {
			return []byte("{}"), nil
		}
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalObject(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
