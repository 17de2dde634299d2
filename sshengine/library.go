package sshengine

import (
	"sync"

	"github.com/pkg/nbsftp"
	"github.com/pkg/nbsftp/internal/pool"
	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
)

// Buffers are sized for one full SFTP packet.
const bufferDepth = 64

var (
	buffersMu sync.Mutex
	buffers   *pool.SlicePool[[]byte, byte]
)

// Library is shared by every engine in the process. Its packet buffer pool
// exists while at least one engine is open.
var Library = nbsftp.NewLibrary(
	func() error {
		buffersMu.Lock()
		defer buffersMu.Unlock()

		buffers = pool.NewSlicePool[[]byte](bufferDepth, sshfx.DefaultMaxPacketLength)
		return nil
	},
	func() {
		buffersMu.Lock()
		defer buffersMu.Unlock()

		buffers = nil
	},
)

// acquireBuffers takes a Library reference and returns the shared pool.
func acquireBuffers() (*pool.SlicePool[[]byte, byte], error) {
	if err := Library.Acquire(); err != nil {
		return nil, err
	}

	buffersMu.Lock()
	defer buffersMu.Unlock()

	return buffers, nil
}
