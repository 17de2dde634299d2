package nbsftp

// Engine is the secure-session engine a Session drives.
//
// Every method that needs socket I/O returns iox.ErrWouldBlock when it cannot
// make progress right now; the Session then waits for readiness in the
// directions reported by BlockDirections and calls the method again with the
// same arguments. Failures are reported as *EngineError.
//
// An engine may hold the caller for a short, bounded time inside a call while
// it moves bytes, so each retry of the driver costs at least that long.
type Engine interface {
	Handshake() error
	BlockDirections() Direction

	// Abandon forgets every call the session gave up on. A later call with
	// the same arguments starts afresh, and the results of abandoned calls
	// are dropped.
	Abandon()

	AuthPassword(user, password string) error
	AuthPublicKey(user string, publicKey, privateKey []byte, passphrase string) error

	// StartSFTP starts the SFTP subsystem on an authenticated session.
	StartSFTP() (SFTP, error)

	// Disconnect tells the peer the session is ending.
	Disconnect(reason string) error

	// HostKey and Methods report what the handshake settled on.
	HostKey() (HostKey, bool)
	Methods() (Methods, bool)

	// Close releases the engine. It never blocks.
	Close() error
}

// EngineFactory creates an Engine for a freshly connected socket.
type EngineFactory func(t *Transport) (Engine, error)

// Handle identifies an open remote file or directory.
type Handle string

// OpenFlag selects the mode a remote file is opened with.
type OpenFlag uint32

// Open flags, with the wire values of SSH_FXF_*.
const (
	OpenRead OpenFlag = 1 << iota
	OpenWrite
	OpenAppend
	OpenCreate
	OpenTruncate
	OpenExclusive
)

// RenameFlag modifies a plain rename.
type RenameFlag uint32

// Rename flags.
const (
	RenameOverwrite RenameFlag = 1 << iota
	RenameAtomic
	RenameNative
)

// Wire attribute flags, as in SSH_FILEXFER_ATTR_*.
const (
	AttrSize        = 1 << iota // SSH_FILEXFER_ATTR_SIZE
	AttrUIDGID                  // SSH_FILEXFER_ATTR_UIDGID
	AttrPermissions             // SSH_FILEXFER_ATTR_PERMISSIONS
	AttrACModTime               // SSH_FILEXFER_ACMODTIME
)

// FileAttrs is file metadata as it travels on the wire.
// Fields whose flag is not set in Flags are undefined.
type FileAttrs struct {
	Flags       uint32
	Size        uint64
	UID         uint32
	GID         uint32
	Permissions uint32
	ATime       uint32
	MTime       uint32
}

// SFTP is the SFTP subsystem of an Engine.
//
// It follows the same would-block convention as Engine.
// Calls failing with an SFTP status return an *EngineError with
// CodeSFTPProtocol, and LastStatus reports the SSH_FX_* code.
type SFTP interface {
	RealPath(path string) (string, error)
	Stat(path string, followLinks bool) (FileAttrs, error)

	Open(path string, flags OpenFlag, perm uint32) (Handle, error)
	OpenDir(path string) (Handle, error)

	// Read returns io.EOF at end of file.
	Read(h Handle, b []byte) (int, error)
	Write(h Handle, b []byte) (int, error)
	Seek(h Handle, offset uint64)

	// ReadDir returns the next entry of a directory handle, and io.EOF after the last one.
	ReadDir(h Handle) (string, FileAttrs, error)

	Close(h Handle) error

	Mkdir(path string, perm uint32) error
	Rmdir(path string) error
	Unlink(path string) error
	Rename(oldPath, newPath string, flags RenameFlag) error
	PosixRename(oldPath, newPath string) error

	LastStatus() uint32

	Shutdown() error
}
