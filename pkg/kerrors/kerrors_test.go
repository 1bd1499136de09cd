package kerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsAndUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := New(IoTransient, "copy_files_in", cause)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, IoTransient, KindOf(err))
	assert.True(t, Is(err, IoTransient))
	assert.False(t, Is(err, IoFatal))
}

func TestNewNilIsNil(t *testing.T) {
	assert.NoError(t, New(BadInput, "parse_event", nil))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(errors.New("plain"), BadInput))
}

func TestErrorMessageFormat(t *testing.T) {
	err := New(ConfigFatal, "bind_websocket", errors.New("address in use"))
	assert.Contains(t, err.Error(), "bind_websocket")
	assert.Contains(t, err.Error(), "config_fatal")
	assert.Contains(t, err.Error(), "address in use")
}
