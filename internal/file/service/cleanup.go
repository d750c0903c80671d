package service

import (
	"context"

	"github.com/gitstash/relay/internal/retention"
)

// Cleanup runs one retention sweep under the given policy. Policy
// parameters are validated here, before the engine lists anything.
func (s *FileService) Cleanup(ctx context.Context, policy retention.Policy) (*retention.Result, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return s.engine.Run(ctx, policy)
}
