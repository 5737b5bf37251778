package twitterapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatestPostsRequestAndTweetsField(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"tweets":[{"id":"2","text":"b"},{"id":1991234567890123456,"text":"a"}],"has_next_page":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret-key")
	posts := c.LatestPosts(context.Background(), "alice", 5)

	require.NotNil(t, got)
	require.Equal(t, "/twitter/tweet/advanced_search", got.URL.Path)
	require.Equal(t, "secret-key", got.Header.Get("X-API-Key"))
	require.Equal(t, "from:alice", got.URL.Query().Get("query"))
	require.Equal(t, "Latest", got.URL.Query().Get("queryType"))
	require.Equal(t, "5", got.URL.Query().Get("limit"))

	require.Len(t, posts, 2)
	require.Equal(t, "2", posts[0]["id"])
	require.Equal(t, json.Number("1991234567890123456"), posts[1]["id"])
}

func TestLatestPostsFallsBackToData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tweets":[],"data":[{"id":"9"}]}`))
	}))
	defer srv.Close()

	posts := NewClient(srv.URL, "k").LatestPosts(context.Background(), "bob", 5)
	require.Len(t, posts, 1)
	require.Equal(t, "9", posts[0]["id"])
}

func TestLatestPostsTruncatesToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tweets":[{"id":"1"},{"id":"2"},{"id":"3"}]}`))
	}))
	defer srv.Close()

	posts := NewClient(srv.URL, "k").LatestPosts(context.Background(), "bob", 2)
	require.Len(t, posts, 2)
}

func TestLatestPostsFailuresYieldEmpty(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		},
		"no list": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"message":"nothing"}}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			posts := NewClient(srv.URL, "k").LatestPosts(context.Background(), "bob", 5)
			require.NotNil(t, posts)
			require.Empty(t, posts)
		})
	}
}

func TestLatestPostsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	posts := NewClient(srv.URL, "k").LatestPosts(context.Background(), "bob", 5)
	require.Empty(t, posts)
}
