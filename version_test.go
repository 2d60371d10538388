package feedme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiateVersion(t *testing.T) {
	v, ok := negotiateVersion([]string{"0.1"}, "0.1")
	assert.True(t, ok)
	assert.Equal(t, "0.1", v)

	_, ok = negotiateVersion([]string{"0.1"}, "9.9")
	assert.False(t, ok)

	_, ok = negotiateVersion([]string{"0.1"}, "")
	assert.False(t, ok)
}
