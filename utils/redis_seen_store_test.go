package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKeyParserRoundTrip(t *testing.T) {
	parser := RedisKeyParser{delimiter: "__"}

	key := parser.MustEncodeSeenKey("viewer_1", "story-abc")
	assert.Equal(t, "viewer_1__story-abc", key)

	viewerID, storyID, err := parser.DecodeSeenKey(key)
	require.NoError(t, err)
	assert.Equal(t, "viewer_1", viewerID)
	assert.Equal(t, "story-abc", storyID)
}

func TestRedisKeyParserRejectsMalformedKey(t *testing.T) {
	parser := RedisKeyParser{delimiter: "__"}

	_, _, err := parser.DecodeSeenKey("no-delimiter-here")
	assert.Error(t, err)

	_, _, err = parser.DecodeSeenKey("too__many__parts")
	assert.Error(t, err)
}

func TestRedisKeyParserValidateId(t *testing.T) {
	parser := RedisKeyParser{delimiter: "__"}

	assert.True(t, parser.ValidateId("plain-id"))
	assert.False(t, parser.ValidateId("sneaky__id"))

	assert.Panics(t, func() {
		parser.MustEncodeSeenKey("sneaky__viewer", "story")
	})
}
