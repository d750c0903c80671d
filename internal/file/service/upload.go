package service

import (
	"context"

	"github.com/gitstash/relay/config"
	"github.com/gitstash/relay/internal/ratelimit"
	"github.com/gitstash/relay/pkg/id"
)

// UploadParams carries one inbound upload request
type UploadParams struct {
	Token      string
	RemoteAddr string
	Filename   string
	Content    []byte
}

// UploadResult reports where an uploaded file can be retrieved
type UploadResult struct {
	Path string
	Size int64
}

// Upload admits and stores a file. Gates run in order: rate check with
// the quota-derived limit, authentication outcome, quota floor, file
// presence, size ceiling. Any failure rejects the request before the
// content store is touched.
func (s *FileService) Upload(ctx context.Context, params *UploadParams) (*UploadResult, error) {
	verdict := s.decider.Decide(ctx, params.Token)

	// Requests without a token are limited per source address
	key := params.Token
	if key == "" {
		key = params.RemoteAddr
	}
	if !s.limiter.Allow(key, verdict.PerMinute) {
		log.Debug("Rate limit hit for key %q (limit %d/min)", key, verdict.PerMinute)
		return nil, ErrRateLimited
	}

	switch verdict.Reason {
	case ratelimit.ReasonOK:
	case ratelimit.ReasonNoToken:
		return nil, ErrMissingToken
	default:
		return nil, verdict.Err
	}

	// Business-policy floor, independent of rate-limit headroom
	if verdict.State.Total() <= ratelimit.QuotaFloor {
		return nil, ErrInsufficientQuota
	}

	if params.Filename == "" {
		return nil, ErrMissingFile
	}
	if int64(len(params.Content)) > config.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	name := id.GenerateObjectName(params.Filename)
	ref, err := s.store.Put(ctx, name, params.Content, "Add file")
	if err != nil {
		return nil, err
	}

	log.Info("Stored %s (%d bytes)", name, len(params.Content))
	return &UploadResult{Path: name, Size: ref.Size}, nil
}
