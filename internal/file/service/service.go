package service

import (
	"errors"

	"github.com/gitstash/relay/internal/ratelimit"
	"github.com/gitstash/relay/internal/retention"
	"github.com/gitstash/relay/internal/store"
	"github.com/gitstash/relay/pkg/logger"
)

var log = logger.New()

// Validation and admission errors. All of them are raised before any
// content store call is made.
var (
	ErrMissingToken      = errors.New("user token is required")
	ErrMissingFile       = errors.New("no file was provided")
	ErrFileTooLarge      = errors.New("file exceeds the maximum allowed size")
	ErrRateLimited       = errors.New("request rate limit exceeded")
	ErrInsufficientQuota = errors.New("quota is insufficient for uploads")
)

// FileService relays files into the content store, admitting uploads by
// quota-derived rate limits and serving and reclaiming stored objects.
type FileService struct {
	store   store.ContentStore
	decider *ratelimit.Decider
	limiter *ratelimit.Registry
	engine  *retention.Engine
}

// New creates a FileService over the given store and quota fetcher
func New(st store.ContentStore, q ratelimit.QuotaFetcher) *FileService {
	return &FileService{
		store:   st,
		decider: ratelimit.NewDecider(q),
		limiter: ratelimit.NewRegistry(),
		engine:  retention.NewEngine(st),
	}
}
