package phaseerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEAndIsRoundTrip(t *testing.T) {
	err := E(InvalidInput, "bad position")
	assert.True(t, Is(err, InvalidInput))
	assert.False(t, Is(err, Cancelled))
	assert.Contains(t, err.Error(), "bad position")
}

func TestIsUnwrapsThroughWrapping(t *testing.T) {
	inner := E(ChromosomeMismatch, "chr1 vs chr2")
	wrapped := fmt.Errorf("compare failed: %w", inner)
	assert.True(t, Is(wrapped, ChromosomeMismatch))
	assert.False(t, Is(wrapped, PloidyError))
}

func TestIsFalseOnPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), InvalidInput))
	assert.False(t, Is(nil, InvalidInput))
}

func TestInvalidfFormatsMessage(t *testing.T) {
	err := Invalidf("sample %s has ploidy %d", "s1", 3)
	assert.True(t, Is(err, InvalidInput))
	assert.Contains(t, err.Error(), "s1")
	assert.Contains(t, err.Error(), "3")
}

func TestKindStringNamesEveryKind(t *testing.T) {
	kinds := []Kind{Other, InvalidInput, UnsupportedOperation, ReferenceRequired, NoCommonSample, ChromosomeMismatch, PloidyError, Cancelled}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		assert.NotEmpty(t, s)
		assert.False(t, seen[s], "duplicate Kind.String() value %q", s)
		seen[s] = true
	}
}
