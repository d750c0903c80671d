package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIURL  = "https://api.github.com"
	requestTimeout = 30 * time.Second
)

// GitHubConfig holds the settings for the GitHub-backed content store
type GitHubConfig struct {
	Owner  string
	Repo   string
	Branch string
	Token  string
	// APIURL overrides the GitHub API base URL, mainly for tests
	APIURL string
}

// GitHubStore implements ContentStore on top of the GitHub contents
// API. The repository is the system of record for file bytes and their
// commit history.
type GitHubStore struct {
	cfg  GitHubConfig
	http *http.Client
}

// NewGitHubStore creates a store for the configured repository
func NewGitHubStore(cfg GitHubConfig) *GitHubStore {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	return &GitHubStore{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
	}
}

func (s *GitHubStore) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.cfg.APIURL, s.cfg.Owner, s.cfg.Repo, path)
}

func (s *GitHubStore) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "token "+s.cfg.Token)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/vnd.github.v3+json")
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}

// throttled reports whether the response is a GitHub rate-limit rejection
func throttled(resp *http.Response, body []byte) bool {
	return resp.StatusCode == http.StatusForbidden &&
		strings.Contains(strings.ToLower(string(body)), "rate limit")
}

// Put uploads content as a new file on the configured branch
func (s *GitHubStore) Put(ctx context.Context, path string, content []byte, message string) (*ObjectRef, error) {
	payload, err := json.Marshal(map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  s.cfg.Branch,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentsURL(path), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		var result struct {
			Content struct {
				Path string `json:"path"`
				SHA  string `json:"sha"`
				Size int64  `json:"size"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decoding upload response: %v", err)
		}
		return &ObjectRef{Path: result.Content.Path, SHA: result.Content.SHA, Size: result.Content.Size}, nil
	case throttled(resp, body):
		return nil, fmt.Errorf("%w: %s", ErrThrottled, path)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", ErrConflict, path)
	default:
		return nil, fmt.Errorf("uploading %s: status %d", path, resp.StatusCode)
	}
}

// Get fetches the raw bytes of the object at path
func (s *GitHubStore) Get(ctx context.Context, path string) ([]byte, string, error) {
	u := s.contentsURL(path) + "?ref=" + url.QueryEscape(s.cfg.Branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3.raw")

	resp, err := s.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, resp.Header.Get("Content-Type"), nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, path)
	case throttled(resp, body):
		return nil, "", fmt.Errorf("%w: %s", ErrThrottled, path)
	default:
		return nil, "", fmt.Errorf("fetching %s: status %d", path, resp.StatusCode)
	}
}

// List enumerates the full repository tree, filtered to blobs
func (s *GitHubStore) List(ctx context.Context) ([]Object, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		s.cfg.APIURL, s.cfg.Owner, s.cfg.Repo, url.PathEscape(s.cfg.Branch))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if throttled(resp, body) {
		return nil, ErrThrottled
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing repository tree: status %d", resp.StatusCode)
	}

	var result struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
			SHA  string `json:"sha"`
		} `json:"tree"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding repository tree: %v", err)
	}

	var objects []Object
	for _, entry := range result.Tree {
		if entry.Type != "blob" {
			continue
		}
		objects = append(objects, Object{Path: entry.Path, SHA: entry.SHA})
	}
	return objects, nil
}

// LastChange returns the date of the most recent commit touching path.
// The committer date is preferred; the author date is a fallback.
func (s *GitHubStore) LastChange(ctx context.Context, path string) (time.Time, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/commits?path=%s&sha=%s&per_page=1",
		s.cfg.APIURL, s.cfg.Owner, s.cfg.Repo, url.QueryEscape(path), url.QueryEscape(s.cfg.Branch))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return time.Time{}, err
	}

	resp, err := s.do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if throttled(resp, body) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrThrottled, path)
	}
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("fetching commits for %s: status %d", path, resp.StatusCode)
	}

	var commits []struct {
		Commit struct {
			Committer *struct {
				Date string `json:"date"`
			} `json:"committer"`
			Author *struct {
				Date string `json:"date"`
			} `json:"author"`
		} `json:"commit"`
	}
	if err := json.Unmarshal(body, &commits); err != nil {
		return time.Time{}, fmt.Errorf("decoding commits for %s: %v", path, err)
	}
	if len(commits) == 0 {
		return time.Time{}, fmt.Errorf("no commit history for %s", path)
	}

	var date string
	if c := commits[0].Commit.Committer; c != nil && c.Date != "" {
		date = c.Date
	} else if a := commits[0].Commit.Author; a != nil && a.Date != "" {
		date = a.Date
	} else {
		return time.Time{}, fmt.Errorf("commit for %s has no date", path)
	}

	t, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing commit date for %s: %v", path, err)
	}
	return t, nil
}

// Delete removes the object at path, conditioned on sha
func (s *GitHubStore) Delete(ctx context.Context, path, sha, message string) error {
	payload, err := json.Marshal(map[string]string{
		"message": message,
		"sha":     sha,
		"branch":  s.cfg.Branch,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.contentsURL(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrStale, path)
	case throttled(resp, body):
		return fmt.Errorf("%w: %s", ErrThrottled, path)
	default:
		return fmt.Errorf("deleting %s: status %d", path, resp.StatusCode)
	}
}
