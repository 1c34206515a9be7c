package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceChecksum(t *testing.T) {
	first := SourceChecksum("Patient presents with chest pain.")
	second := SourceChecksum("Patient presents with chest pain.")
	changed := SourceChecksum("Patient presents with chest pain!")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, changed)
	assert.Len(t, first, 64)
}
