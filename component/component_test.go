package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinderMergeAndFind(t *testing.T) {
	f := NewFinder([]int64{100, 200, 300, 400})
	assert.False(t, f.Same(100, 200))
	f.Merge(100, 200)
	assert.True(t, f.Same(100, 200))
	assert.False(t, f.Same(100, 300))
	f.Merge(200, 300)
	assert.True(t, f.Same(100, 300))
	assert.False(t, f.Same(100, 400))
	assert.Len(t, f.Components(), 2)
}

func TestFinderLazyRegistration(t *testing.T) {
	f := NewFinder(nil)
	f.Merge(5, 10)
	assert.True(t, f.Same(5, 10))
	assert.False(t, f.Same(5, 15))
}
