package preferences

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentCache(t *testing.T) {
	c := NewContentCache()

	_, ok := c.Get("A1")
	require.False(t, ok)

	c.Put("A1", "a sunny loft")
	got, ok := c.Get("A1")
	require.True(t, ok)
	require.Equal(t, "a sunny loft", got)

	c.Put("A1", "updated")
	got, _ = c.Get("A1")
	require.Equal(t, "updated", got)
	require.Equal(t, 1, c.Len())

	c.Put("", "ignored")
	require.Equal(t, 1, c.Len())
}
