package feedme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedMd5_Length(t *testing.T) {
	h, err := feedMd5(map[string]any{"a": 1.0})
	require.NoError(t, err)
	assert.Len(t, h, 24)
}

func TestFeedMd5_KeyOrderIndependent(t *testing.T) {
	a, err := feedMd5(map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)

	// Go map iteration order is randomized, but writeCanonical sorts keys
	// before hashing, so both trees below must hash identically.
	b, err := feedMd5(map[string]any{"b": 2.0, "a": 1.0})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestFeedMd5_DifferentTreesDifferentHash(t *testing.T) {
	a, err := feedMd5(map[string]any{"a": 1.0})
	require.NoError(t, err)
	b, err := feedMd5(map[string]any{"a": 2.0})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyFeedMd5(t *testing.T) {
	tree := map[string]any{"member": "myval"}
	want, err := feedMd5(tree)
	require.NoError(t, err)

	ok, err := verifyFeedMd5(tree, want)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyFeedMd5(tree, "deadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanonicalNumber(t *testing.T) {
	tt := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-1, "-1"},
		{1.5, "1.5"},
		{100, "100"},
	}
	for _, tc := range tt {
		assert.Equal(t, tc.want, canonicalNumber(tc.in))
	}
}
