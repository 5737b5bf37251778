package normalize

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

func decode(t *testing.T, s string) models.RawPost {
	t.Helper()
	dec := json.NewDecoder(bytes.NewBufferString(s))
	dec.UseNumber()
	var raw models.RawPost
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func TestConvertTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Sat Nov 22 04:00:00 +0000 2025", "2025-11-22 12:00:00", true},
		{"2025-11-22T04:00:00Z", "2025-11-22 12:00:00", true},
		{"2025-11-22T04:00:00.123Z", "2025-11-22 12:00:00", true},
		{"2025-11-22T12:00:00+08:00", "2025-11-22 12:00:00", true},
		{"2025-11-22T04:00:00", "2025-11-22 12:00:00", true},
		{"2025-11-22T04:00:00+0000", "2025-11-22 12:00:00", true},
		{"2025-11-22T04:00:00.5-0100", "2025-11-22 13:00:00", true},
		{"Sat Nov 22 20:30:00 +0000 2025", "2025-11-23 04:30:00", true},
		{"Sat Nov 22 04:00:00 -0500 2025", "2025-11-22 17:00:00", true},
		{"yesterday-ish", "yesterday-ish", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ConvertTimestamp(tc.in)
		require.Equal(t, tc.want, got, tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
	}
}

func TestNormalizeFullRecord(t *testing.T) {
	raw := decode(t, `{
		"id": "1991234567890",
		"text": "hello world",
		"createdAt": "Sat Nov 22 04:00:00 +0000 2025",
		"likeCount": 12,
		"retweetCount": 3,
		"replyCount": "4",
		"quoteCount": 1,
		"viewCount": 1500,
		"bookmarkCount": 2,
		"lang": "zh",
		"source": "Twitter Web App",
		"possibly_sensitive": true,
		"isReply": true,
		"inReplyToId": "1990000000000",
		"conversationId": "1990000000000",
		"inReplyToUsername": "bob",
		"displayTextRange": [0, 11],
		"entities": {"urls": [{"expanded_url": "https://example.com/a"}]},
		"author": {"userName": "alice", "name": "Alice"},
		"url": "https://x.com/alice/status/1991234567890"
	}`)

	p := Normalize(raw, "alice")

	require.Equal(t, "1991234567890", p.ID)
	require.Equal(t, "alice", p.Account)
	require.Equal(t, "hello world", p.Text)
	require.Equal(t, "2025-11-22 12:00:00", p.CreatedAtLocal)
	require.Equal(t, "Sat Nov 22 04:00:00 +0000 2025", p.CreatedAtRaw)
	require.EqualValues(t, 12, p.Likes)
	require.EqualValues(t, 3, p.Retweets)
	require.EqualValues(t, 4, p.Replies)
	require.EqualValues(t, 1, p.Quotes)
	require.EqualValues(t, 1500, p.Views)
	require.EqualValues(t, 2, p.Bookmarks)
	require.Equal(t, "zh", p.Lang)
	require.True(t, p.Sensitive)
	require.True(t, p.IsReply)
	require.Equal(t, "bob", p.InReplyToUsername)
	require.Len(t, p.DisplayTextRange, 2)
	require.Equal(t, "alice", p.AuthorName())
	require.Contains(t, p.Entities, "urls")
	require.Equal(t, "https://x.com/alice/status/1991234567890", p.URL)
	require.Equal(t, raw, p.Raw)
	require.Empty(t, p.Summary)
}

func TestNormalizeDefaults(t *testing.T) {
	p := Normalize(models.RawPost{"id": "42"}, "bob")

	require.Zero(t, p.Likes)
	require.Zero(t, p.Retweets)
	require.Zero(t, p.Replies)
	require.Zero(t, p.Quotes)
	require.Zero(t, p.Views)
	require.Equal(t, "", p.Text)
	require.Equal(t, "", p.CreatedAtLocal)
	require.Equal(t, "", p.Source)
	require.Equal(t, "", p.Lang)
	require.False(t, p.Sensitive)
	require.Equal(t, map[string]any{}, p.Entities)
	require.Equal(t, map[string]any{}, p.Attachments)
	require.Equal(t, map[string]any{}, p.Geo)
	require.Nil(t, p.Author)
	require.Equal(t, "https://x.com/bob/status/42", p.URL)
}

func TestNormalizeFavoriteFallback(t *testing.T) {
	p := Normalize(decode(t, `{"id": "1", "favorite_count": 7}`), "a")
	require.EqualValues(t, 7, p.Likes)

	p = Normalize(decode(t, `{"id": "1", "likeCount": 0, "favorite_count": 9}`), "a")
	require.EqualValues(t, 9, p.Likes)

	p = Normalize(decode(t, `{"id": "1", "likeCount": 5, "favorite_count": 9}`), "a")
	require.EqualValues(t, 5, p.Likes)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestNormalizeUnparseableTimestampPassesThrough(t *testing.T) {
	logs := captureLogs(t)

	p := Normalize(models.RawPost{"id": "1", "createdAt": "not a date"}, "a")
	require.Equal(t, "not a date", p.CreatedAtLocal)
	require.Equal(t, "not a date", p.CreatedAtRaw)
	require.Contains(t, logs.String(), "level=WARN")
	require.Contains(t, logs.String(), `msg="normalize: unparseable timestamp"`)
	require.Contains(t, logs.String(), `created_at="not a date"`)
}

func TestNormalizeValidTimestampLogsNothing(t *testing.T) {
	logs := captureLogs(t)

	Normalize(models.RawPost{"id": "1", "createdAt": "Sat Nov 22 04:00:00 +0000 2025"}, "a")
	Normalize(models.RawPost{"id": "2"}, "a")
	require.NotContains(t, logs.String(), "unparseable timestamp")
}

func TestPostID(t *testing.T) {
	require.Equal(t, "123", PostID(decode(t, `{"id": 123}`)))
	require.Equal(t, "1991234567890123456", PostID(decode(t, `{"id": 1991234567890123456}`)))
	require.Equal(t, "abc", PostID(models.RawPost{"id": " abc "}))
	require.Equal(t, "77", PostID(models.RawPost{"id": float64(77)}))
	require.Equal(t, "", PostID(models.RawPost{"id": nil}))
	require.Equal(t, "", PostID(models.RawPost{}))
}

func TestIntAccessor(t *testing.T) {
	raw := models.RawPost{
		"n":     json.Number("10"),
		"f":     json.Number("2.0"),
		"s":     "15",
		"float": float64(3),
		"bad":   "abc",
		"obj":   map[string]any{},
	}
	require.EqualValues(t, 10, Int(raw, "n"))
	require.EqualValues(t, 2, Int(raw, "f"))
	require.EqualValues(t, 15, Int(raw, "s"))
	require.EqualValues(t, 3, Int(raw, "float"))
	require.Zero(t, Int(raw, "bad"))
	require.Zero(t, Int(raw, "obj"))
	require.Zero(t, Int(raw, "missing"))
}
