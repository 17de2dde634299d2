package nbsftp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.addDir("/", "srv")
	h.sftp.addFile("/srv", "b.txt", []byte("b"))
	h.sftp.addDir("/srv", "a")
	h.sftp.addFile("/srv/a", "c.txt", []byte("cc"))

	var paths []string
	sizes := make(map[string]int64)

	walker := h.session.Walk("/srv", After(time.Second))
	for walker.Step() {
		require.NoError(t, walker.Err())
		paths = append(paths, walker.Path())
		sizes[walker.Path()] = walker.Stat().Size()
	}

	assert.Equal(t, []string{"/srv", "/srv/a", "/srv/a/c.txt", "/srv/b.txt"}, paths)
	assert.Equal(t, int64(2), sizes["/srv/a/c.txt"])
	assert.Empty(t, h.sftp.handles)
}

func TestWalkMissingRoot(t *testing.T) {
	h := newHarness().loggedIn()

	walker := h.session.Walk("/nope", After(time.Second))
	require.True(t, walker.Step())
	assert.Error(t, walker.Err())
	assert.False(t, walker.Step())
}
