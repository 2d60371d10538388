package feedme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedKey_Deterministic(t *testing.T) {
	a := feedKey("myFeed", map[string]string{"x": "1", "y": "2"})
	b := feedKey("myFeed", map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b, "argument order must not affect the key")
}

func TestFeedKey_EmptyArgsIsValidAndDeterministic(t *testing.T) {
	a := feedKey("myFeed", map[string]string{})
	b := feedKey("myFeed", map[string]string{})
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestFeedKey_Injective(t *testing.T) {
	tt := []struct {
		name string
		args map[string]string
	}{
		{"myFeed", map[string]string{"a": "1"}},
		{"myFeed", map[string]string{"a": "11"}},
		{"myFeed", map[string]string{"a1": "1"}},
		{"myFeedX", map[string]string{"a": "1"}},
		{"my", map[string]string{"FeedX:a": "1"}},
	}
	seen := make(map[string]string)
	for _, tc := range tt {
		k := feedKey(tc.name, tc.args)
		if prior, ok := seen[k]; ok {
			t.Fatalf("collision: %q and %q both produced key %q", prior, tc.name, k)
		}
		seen[k] = tc.name
	}
}
