package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Errors returned by Fetch. None of them are retriable at this layer;
// callers treat every failure as "deny minimally".
var (
	ErrUnreachable = errors.New("authorization service unreachable")
	ErrRejected    = errors.New("token rejected by authorization service")
	ErrMalformed   = errors.New("malformed quota response")
)

const requestTimeout = 10 * time.Second

// State is a caller's quota as reported by the authorization service.
// It is fetched fresh per request (subject to the cache TTL) and never
// mutated locally.
type State struct {
	Granted  int64
	Consumed int64
}

// Total returns the combined quota used for rate derivation
func (s *State) Total() int64 {
	return s.Granted + s.Consumed
}

// Client fetches quota state from the remote authorization service,
// caching successful results per token to absorb request bursts.
type Client struct {
	baseURL string
	ttl     time.Duration
	http    *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	state     State
	expiresAt time.Time
}

// NewClient creates a quota client against the given base URL. Cache
// entries expire after ttl and are never invalidated by write-through.
func NewClient(baseURL string, ttl time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		ttl:     ttl,
		http:    &http.Client{Timeout: requestTimeout},
		cache:   make(map[string]cacheEntry),
	}
}

type userInfoResponse struct {
	Data *struct {
		Quota     *int64 `json:"quota"`
		UsedQuota *int64 `json:"used_quota"`
	} `json:"data"`
}

// Fetch returns the quota state for the given bearer token. Successful
// lookups are served from cache for up to the configured TTL.
func (c *Client) Fetch(ctx context.Context, token string) (*State, error) {
	c.mu.Lock()
	if entry, ok := c.cache[token]; ok && time.Now().Before(entry.expiresAt) {
		state := entry.state
		c.mu.Unlock()
		return &state, nil
	}
	c.mu.Unlock()

	// The remote call happens without holding the cache lock
	state, err := c.fetchRemote(ctx, token)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[token] = cacheEntry{state: *state, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return state, nil
}

func (c *Client) fetchRemote(ctx context.Context, token string) (*State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/user/self", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if info.Data == nil || info.Data.Quota == nil || info.Data.UsedQuota == nil {
		return nil, fmt.Errorf("%w: missing quota fields", ErrMalformed)
	}

	return &State{Granted: *info.Data.Quota, Consumed: *info.Data.UsedQuota}, nil
}
