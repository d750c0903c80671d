package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitstash/relay/internal/file/api"
	"github.com/gitstash/relay/internal/file/service"
	"github.com/gitstash/relay/internal/quota"
	"github.com/gitstash/relay/internal/store"
	model "github.com/gitstash/relay/pkg/file"
)

const testSecret = "sweep-me"

type fakeQuota struct {
	state *quota.State
}

func (f *fakeQuota) Fetch(ctx context.Context, token string) (*quota.State, error) {
	return f.state, nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, path string, content []byte, message string) (*store.ObjectRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = append([]byte(nil), content...)
	return &store.ObjectRef{Path: path, SHA: "sha-" + path, Size: int64(len(content))}, nil
}

func (m *memStore) Get(ctx context.Context, path string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.objects[path]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", store.ErrNotFound, path)
	}
	return content, "", nil
}

func (m *memStore) List(ctx context.Context) ([]store.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var objects []store.Object
	for path := range m.objects {
		objects = append(objects, store.Object{Path: path, SHA: "sha-" + path})
	}
	return objects, nil
}

func (m *memStore) LastChange(ctx context.Context, path string) (time.Time, error) {
	return time.Now().Add(-48 * time.Hour), nil
}

func (m *memStore) Delete(ctx context.Context, path, sha, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc := service.New(newMemStore(), &fakeQuota{state: &quota.State{Granted: 40_000_000, Consumed: 10_000_000}})
	handler := api.NewFileHandler(svc, testSecret)

	container := restful.NewContainer()
	ws := new(restful.WebService)
	ws.Path("/").Produces(restful.MIME_JSON)
	api.RegisterRoutes(ws, handler)
	container.Add(ws)

	srv := httptest.NewServer(container)
	t.Cleanup(srv.Close)
	return srv
}

func multipartUpload(t *testing.T, url, token, filename string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if token != "" {
		require.NoError(t, w.WriteField("token", token))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	resp, err := http.Post(url+"/upload", w.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestUploadAndDownload(t *testing.T) {
	srv := newTestServer(t)

	payload := []byte("round trip payload")
	resp := multipartUpload(t, srv.URL, "tok", "data.txt", payload)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result model.UploadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Contains(t, result.FileURL, "/file/")

	getResp, err := http.Get(result.FileURL)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	downloaded, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, downloaded)
}

func TestUploadWithoutFilePart(t *testing.T) {
	srv := newTestServer(t)

	resp := multipartUpload(t, srv.URL, "tok", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var fileErr model.FileError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fileErr))
	assert.Equal(t, "MISSING_FILE", fileErr.Code)
}

func TestUploadWithoutToken(t *testing.T) {
	srv := newTestServer(t)

	resp := multipartUpload(t, srv.URL, "", "data.txt", []byte("x"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var fileErr model.FileError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fileErr))
	assert.Equal(t, "MISSING_TOKEN", fileErr.Code)
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(t)

	oversized := bytes.Repeat([]byte{0xAA}, 5*1024*1024+1)
	resp := multipartUpload(t, srv.URL, "tok", "big.bin", oversized)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestGetUnknownFile(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/file/never-stored.bin")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCleanupRequiresSecret(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.PostForm(srv.URL+"/cleanup/wrong-secret", map[string][]string{
		"mode": {"age"}, "days": {"0"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCleanupByAge(t *testing.T) {
	srv := newTestServer(t)

	// Store something first
	resp := multipartUpload(t, srv.URL, "tok", "old.txt", []byte("old"))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cleanupResp, err := http.PostForm(srv.URL+"/cleanup/"+testSecret, map[string][]string{
		"mode": {"age"}, "days": {"0"},
	})
	require.NoError(t, err)
	defer cleanupResp.Body.Close()
	require.Equal(t, http.StatusOK, cleanupResp.StatusCode)

	var result model.CleanupResult
	require.NoError(t, json.NewDecoder(cleanupResp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.DeletedCount)
}

func TestCleanupInvalidParams(t *testing.T) {
	srv := newTestServer(t)

	cases := []map[string][]string{
		{"mode": {"age"}, "days": {"-1"}},
		{"mode": {"age"}, "days": {"soon"}},
		{"mode": {"count"}, "count": {"0"}},
		{"mode": {"count"}},
		{"mode": {"everything"}},
	}

	for _, form := range cases {
		resp, err := http.PostForm(srv.URL+"/cleanup/"+testSecret, form)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "form %v", form)
	}
}
