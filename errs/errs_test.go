package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNetwork, CodeOf(Network("connection refused")))
	assert.Equal(t, CodeConflict, CodeOf(Conflict("duplicate key")))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

func TestCodeSurvivesWrapping(t *testing.T) {
	err := NotFound("story not found")
	wrapped := errors.Wrap(err, "delete story s1")

	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Contains(t, wrapped.Error(), "delete story s1")
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(CodeNetwork, "fail to reach database", cause)

	assert.True(t, IsNetwork(err))
	assert.True(t, errors.Is(err, cause))
}

func TestHelpersMatchOnlyTheirCode(t *testing.T) {
	err := Unauthenticated("token expired")

	assert.True(t, IsUnauthenticated(err))
	assert.False(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsNetwork(err))
}
