package tape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandles_Lifecycle(t *testing.T) {
	h := NewHandles()

	a := h.Create([]byte("a"))
	b := h.Create([]byte("b"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, h.Len())

	got, err := h.Resolve(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	assert.True(t, h.Revoke(a))
	assert.False(t, h.Revoke(a))

	_, err = h.Resolve(a)
	assert.ErrorIs(t, err, ErrHandleRevoked)

	assert.Equal(t, 1, h.RevokeAll())
	assert.Zero(t, h.Len())
	_, err = h.Resolve(b)
	assert.ErrorIs(t, err, ErrHandleRevoked)
}
