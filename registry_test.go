package feedme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedEntry_PublicStateMapping(t *testing.T) {
	tt := []struct {
		name  string
		entry feedEntry
		want  FeedState
	}{
		{"opening", feedEntry{state: feedOpening}, FeedOpening},
		{"open", feedEntry{state: feedOpen}, FeedOpen},
		{"closing", feedEntry{state: feedClosing}, FeedClosing},
		{"terminated maps externally to closing", feedEntry{state: feedTerminated}, FeedClosing},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.entry.public())
		})
	}
}

func TestFeedRegistry_PutGetRemove(t *testing.T) {
	r := newFeedRegistry()

	_, ok := r.get("k")
	assert.False(t, ok, "unknown key must report absent")

	entry := &feedEntry{state: feedOpen, name: "f", data: 1.0}
	r.put("k", entry)

	got, ok := r.get("k")
	require.True(t, ok)
	assert.Same(t, entry, got)

	r.remove("k")
	_, ok = r.get("k")
	assert.False(t, ok)
}

func TestFeedRegistry_Snapshot(t *testing.T) {
	r := newFeedRegistry()
	r.put("a", &feedEntry{state: feedOpen, name: "a"})
	r.put("b", &feedEntry{state: feedClosing, name: "b"})

	snap := r.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap["a"].name)
	assert.Equal(t, "b", snap["b"].name)

	// Mutating the registry after the snapshot was taken must not affect it.
	r.remove("a")
	r.put("c", &feedEntry{state: feedOpen, name: "c"})
	assert.Len(t, snap, 2, "snapshot must be independent of later registry mutations")
	_, stillThere := snap["a"]
	assert.True(t, stillThere)
}

func TestFeedRegistry_Clear(t *testing.T) {
	r := newFeedRegistry()
	r.put("a", &feedEntry{state: feedOpen})
	r.put("b", &feedEntry{state: feedOpen})

	r.clear()

	assert.Empty(t, r.snapshot())
	_, ok := r.get("a")
	assert.False(t, ok)
}
