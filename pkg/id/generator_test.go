package id_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitstash/relay/pkg/id"
)

func TestGenerateObjectName(t *testing.T) {
	generated := make(map[string]bool)
	iterations := 1000

	pattern := regexp.MustCompile(`^[0-9a-f]{32}\.png$`)

	for i := 0; i < iterations; i++ {
		name := id.GenerateObjectName("screenshot.PNG")

		assert.True(t, pattern.MatchString(name), "generated name %s does not match expected pattern", name)

		// Check uniqueness
		_, exists := generated[name]
		assert.False(t, exists, "generated duplicate name: %s", name)
		generated[name] = true
	}
}

func TestGenerateObjectNameWithoutExtension(t *testing.T) {
	name := id.GenerateObjectName("README")
	assert.Regexp(t, `^[0-9a-f]{32}$`, name)
}
