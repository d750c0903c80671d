package id

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateObjectName creates a collision-resistant object name for an
// uploaded file, preserving the original extension. The name is the hex
// form of a random UUID, so callers never need to coordinate on paths.
func GenerateObjectName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}
