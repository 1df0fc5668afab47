package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVersion(t *testing.T) {
	testCases := map[string]string{
		"0.0.0-abc123":   "abc123",
		"1.2.3":          "1.2.3",
		"v1.0.0":         "v1.0.0",
		"0.0.0-":         "0.0.0-",
		"1.0.0-0.0.0-ab": "1.0.0-0.0.0-ab",
		"0.0.0-feat-x":   "feat-x",
	}
	for input, expect := range testCases {
		assert.Equal(t, expect, NormalizeVersion(input), input)
	}
}

func TestTrimScope(t *testing.T) {
	assert.Equal(t, "org/pkg", TrimScope("@org/pkg"))
	assert.Equal(t, "org/pkg", TrimScope("org/pkg"))
}
