package service

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// FileContent represents the content of a stored file
type FileContent struct {
	Content  []byte
	MimeType string
}

// GetFile fetches a stored file's bytes. The content type reported by
// the store is used when present; otherwise it is sniffed from the
// bytes themselves.
func (s *FileService) GetFile(ctx context.Context, path string) (*FileContent, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	content, contentType, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(content).String()
	}

	return &FileContent{Content: content, MimeType: contentType}, nil
}
