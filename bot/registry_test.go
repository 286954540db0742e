package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry()
	assert.Equal(t, 0, r.Count())

	r.Register("t1", "fix the parser", "/repo/a")
	r.Register("t2", "write docs", "/repo/b")
	assert.Equal(t, 2, r.Count())

	others := r.Others("t1")
	require.Len(t, others, 1)
	assert.Equal(t, "t2", others[0].ThreadID)
	assert.Equal(t, "write docs", others[0].Description)
	assert.Equal(t, "/repo/b", others[0].WorkingDir)

	r.Unregister("t2")
	assert.Empty(t, r.Others("t1"))
	assert.Equal(t, 1, r.Count())

	// Unregistering an absent thread is a no-op
	r.Unregister("ghost")
	assert.Equal(t, 1, r.Count())
}
