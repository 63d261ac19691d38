package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKey(t *testing.T) {
	key := HashKey("http://files/doc.pdf")

	assert.Regexp(t, `^fid_[0-9a-f]{32}$`, key)
	assert.Equal(t, key, HashKey("http://files/doc.pdf"))
	assert.NotEqual(t, key, HashKey("http://files/other.pdf"))
}
