// Package normalize maps raw search API posts into canonical posts.
package normalize

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

// LocalZone is the fixed offset all post timestamps are rendered in.
var LocalZone = time.FixedZone("UTC+8", 8*60*60)

// LocalLayout is the rendering of CreatedAtLocal.
const LocalLayout = "2006-01-02 15:04:05"

// twitterLayout is the classic platform timestamp, e.g. "Sat Nov 22 04:00:00 +0000 2025".
const twitterLayout = "Mon Jan 02 15:04:05 -0700 2006"

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// Normalize converts a raw post fetched for account into a Post. It never
// fails: missing fields take their defaults and an unparseable timestamp is
// kept verbatim.
func Normalize(raw models.RawPost, account string) models.Post {
	id := PostID(raw)
	createdRaw := String(raw, "createdAt")

	local, ok := ConvertTimestamp(createdRaw)
	if !ok && createdRaw != "" {
		slog.Warn("normalize: unparseable timestamp", "post_id", id, "account", account, "created_at", createdRaw)
	}

	p := models.Post{
		ID:                id,
		Account:           account,
		Text:              String(raw, "text"),
		CreatedAtLocal:    local,
		CreatedAtRaw:      createdRaw,
		Likes:             FirstInt(raw, "likeCount", "favorite_count"),
		Retweets:          Int(raw, "retweetCount"),
		Replies:           Int(raw, "replyCount"),
		Quotes:            Int(raw, "quoteCount"),
		Views:             Int(raw, "viewCount"),
		Bookmarks:         Int(raw, "bookmarkCount"),
		Entities:          Object(raw, "entities"),
		Attachments:       Object(raw, "attachments"),
		Geo:               Object(raw, "geo"),
		Source:            String(raw, "source"),
		Lang:              String(raw, "lang"),
		Sensitive:         Bool(raw, "possibly_sensitive"),
		IsReply:           Bool(raw, "isReply"),
		InReplyToID:       String(raw, "inReplyToId"),
		ConversationID:    String(raw, "conversationId"),
		InReplyToUserID:   String(raw, "inReplyToUserId"),
		InReplyToUsername: String(raw, "inReplyToUsername"),
		DisplayTextRange:  Array(raw, "displayTextRange"),
		URL:               String(raw, "url"),
		Raw:               raw,
	}
	if author, ok := raw["author"].(map[string]any); ok {
		p.Author = author
	}
	if p.URL == "" && id != "" {
		p.URL = "https://x.com/" + account + "/status/" + id
	}
	return p
}

// ConvertTimestamp renders raw in LocalZone. It accepts the platform format
// and ISO-8601; on failure it returns raw unchanged and false.
func ConvertTimestamp(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw, false
	}
	if t, err := time.Parse(twitterLayout, s); err == nil {
		return t.In(LocalZone).Format(LocalLayout), true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(LocalZone).Format(LocalLayout), true
		}
	}
	return raw, false
}

// PostID returns the post identifier, rendering numeric ids in decimal.
// It returns "" when the post has no usable id.
func PostID(raw models.RawPost) string {
	switch v := raw["id"].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatFloat(v, 'f', 0, 64)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// String returns raw[key] when it is a string, otherwise "". Numeric values
// are rendered in decimal so ids sent as numbers still compare as text.
func String(raw models.RawPost, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Int returns raw[key] as an integer, accepting JSON numbers and numeric
// strings. Anything else yields 0.
func Int(raw models.RawPost, key string) int64 {
	switch v := raw[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

// FirstInt returns the first non-zero counter among keys, or 0.
func FirstInt(raw models.RawPost, keys ...string) int64 {
	for _, key := range keys {
		if n := Int(raw, key); n != 0 {
			return n
		}
	}
	return 0
}

// Bool returns raw[key] when it is a boolean (or "true"/"false"), otherwise false.
func Bool(raw models.RawPost, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Object returns raw[key] when it is a JSON object, otherwise an empty object.
func Object(raw models.RawPost, key string) map[string]any {
	if m, ok := raw[key].(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// Array returns raw[key] when it is a JSON array, otherwise nil.
func Array(raw models.RawPost, key string) []any {
	if a, ok := raw[key].([]any); ok {
		return a
	}
	return nil
}
