package store_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitstash/relay/internal/store"
)

func newGitHubStore(t *testing.T, handler http.Handler) *store.GitHubStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return store.NewGitHubStore(store.GitHubConfig{
		Owner:  "acme",
		Repo:   "stash",
		Branch: "main",
		Token:  "gh-token",
		APIURL: srv.URL,
	})
}

func TestPutEncodesContent(t *testing.T) {
	var body map[string]string
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/repos/acme/stash/contents/ab12.png", r.URL.Path)
		assert.Equal(t, "token gh-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"content":{"path":"ab12.png","sha":"abc123","size":3}}`)
	}))

	ref, err := s.Put(context.Background(), "ab12.png", []byte{1, 2, 3}, "Add file")
	require.NoError(t, err)

	assert.Equal(t, "Add file", body["message"])
	assert.Equal(t, "main", body["branch"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), body["content"])
	assert.Equal(t, "ab12.png", ref.Path)
	assert.Equal(t, "abc123", ref.SHA)
	assert.Equal(t, int64(3), ref.Size)
}

func TestPutConflict(t *testing.T) {
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"\"sha\" wasn't supplied"}`)
	}))

	_, err := s.Put(context.Background(), "dup.png", []byte("x"), "Add file")
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestPutThrottled(t *testing.T) {
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
	}))

	_, err := s.Put(context.Background(), "x.png", []byte("x"), "Add file")
	assert.ErrorIs(t, err, store.ErrThrottled)
}

func TestGetReturnsRawContent(t *testing.T) {
	payload := []byte("hello world")
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/stash/contents/ab12.txt", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "application/vnd.github.v3.raw", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(payload)
	}))

	content, contentType, err := s.Get(context.Background(), "ab12.txt")
	require.NoError(t, err)
	assert.Equal(t, payload, content)
	assert.Equal(t, "text/plain; charset=utf-8", contentType)
}

func TestGetNotFound(t *testing.T) {
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, _, err := s.Get(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListFiltersTreeEntries(t *testing.T) {
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/stash/git/trees/main", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"tree":[
			{"path":"a.png","type":"blob","sha":"s1"},
			{"path":"sub","type":"tree","sha":"s2"},
			{"path":"sub/b.txt","type":"blob","sha":"s3"}
		]}`)
	}))

	objects, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []store.Object{{Path: "a.png", SHA: "s1"}, {Path: "sub/b.txt", SHA: "s3"}}, objects)
}

func TestLastChangePrefersCommitterDate(t *testing.T) {
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/stash/commits", r.URL.Path)
		assert.Equal(t, "a.png", r.URL.Query().Get("path"))
		assert.Equal(t, "main", r.URL.Query().Get("sha"))
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[{"commit":{
			"committer":{"date":"2026-02-01T10:00:00Z"},
			"author":{"date":"2026-01-01T10:00:00Z"}
		}}]`)
	}))

	ts, err := s.LastChange(context.Background(), "a.png")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), ts)
}

func TestLastChangeFallsBackToAuthorDate(t *testing.T) {
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"commit":{"author":{"date":"2026-01-01T10:00:00Z"}}}]`)
	}))

	ts, err := s.LastChange(context.Background(), "a.png")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), ts)
}

func TestLastChangeEmptyHistory(t *testing.T) {
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))

	_, err := s.LastChange(context.Background(), "a.png")
	assert.Error(t, err)
}

func TestDeleteSendsShaAndBranch(t *testing.T) {
	var body map[string]string
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/repos/acme/stash/contents/old.png", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{}`)
	}))

	err := s.Delete(context.Background(), "old.png", "sha-1", "Delete old.png as part of cleanup.")
	require.NoError(t, err)
	assert.Equal(t, "sha-1", body["sha"])
	assert.Equal(t, "main", body["branch"])
}

func TestDeleteStale(t *testing.T) {
	s := newGitHubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"old.png does not match"}`)
	}))

	err := s.Delete(context.Background(), "old.png", "stale-sha", "cleanup")
	assert.ErrorIs(t, err, store.ErrStale)
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	s := store.NewGitHubStore(store.GitHubConfig{
		Owner: "acme", Repo: "stash", Branch: "main", Token: "t", APIURL: srv.URL,
	})
	_, err := s.List(context.Background())
	assert.ErrorIs(t, err, store.ErrUnreachable)
}
