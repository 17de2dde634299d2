package nbsftp

import (
	"io"
	"net"
	"sort"
	"strconv"
	"time"

	"code.hybscloud.com/iox"

	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
)

// fakeSelector reports scripted readiness.
// Once the script runs out it reports ready.
type fakeSelector struct {
	script []bool
	never  bool

	dirs    []Direction
	periods []time.Duration
}

func (f *fakeSelector) Wait(dir Direction, d time.Duration) bool {
	f.dirs = append(f.dirs, dir)
	f.periods = append(f.periods, d)

	if f.never {
		return false
	}

	if len(f.script) == 0 {
		return true
	}

	ready := f.script[0]
	f.script = f.script[1:]
	return ready
}

func (f *fakeSelector) waits() int { return len(f.dirs) }

type fakeSocket struct {
	connectStatus SocketStatus
	remote        net.Addr
	selector      *fakeSelector
	log           *[]string

	connects    int
	disconnects int
}

func newFakeSocket(log *[]string) *fakeSocket {
	return &fakeSocket{
		connectStatus: SocketNotReady,
		remote:        &net.TCPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 22},
		selector:      &fakeSelector{},
		log:           log,
	}
}

func (f *fakeSocket) Connect(host string, port uint16) SocketStatus {
	f.connects++
	return f.connectStatus
}

func (f *fakeSocket) Send(b []byte) (SocketStatus, int)    { return SocketDone, len(b) }
func (f *fakeSocket) Receive(b []byte) (SocketStatus, int) { return SocketNotReady, 0 }

func (f *fakeSocket) Disconnect() {
	f.disconnects++
	*f.log = append(*f.log, "socket-disconnect")
}

func (f *fakeSocket) RemoteAddr() net.Addr {
	if f.remote == nil {
		return nil
	}
	return f.remote
}

func (f *fakeSocket) Selector() Selector { return f.selector }

// fakeEngine completes calls after a scripted number of would-blocks.
type fakeEngine struct {
	log *[]string

	handshakeBlocks int
	handshakeErr    error
	authErr         error
	disconnectStuck bool

	hostKey    HostKey
	hasHostKey bool
	methods    Methods

	sftp *fakeSFTP

	user     string
	closed   bool
	abandons int
}

func (e *fakeEngine) Handshake() error {
	if e.handshakeBlocks > 0 {
		e.handshakeBlocks--
		return iox.ErrWouldBlock
	}

	if e.handshakeErr != nil {
		return e.handshakeErr
	}

	e.hasHostKey = true
	return nil
}

func (e *fakeEngine) BlockDirections() Direction { return Inbound }

func (e *fakeEngine) Abandon() { e.abandons++ }

func (e *fakeEngine) AuthPassword(user, password string) error {
	e.user = user
	return e.authErr
}

func (e *fakeEngine) AuthPublicKey(user string, publicKey, privateKey []byte, passphrase string) error {
	e.user = user
	return e.authErr
}

func (e *fakeEngine) StartSFTP() (SFTP, error) { return e.sftp, nil }

func (e *fakeEngine) Disconnect(reason string) error {
	if e.disconnectStuck {
		return iox.ErrWouldBlock
	}

	*e.log = append(*e.log, "ssh-disconnect")
	return nil
}

func (e *fakeEngine) HostKey() (HostKey, bool) { return e.hostKey, e.hasHostKey }

func (e *fakeEngine) Methods() (Methods, bool) { return e.methods, e.hasHostKey }

func (e *fakeEngine) Close() error {
	e.closed = true
	*e.log = append(*e.log, "engine-close")
	return nil
}

type fakeHandle struct {
	path    string
	flags   OpenFlag
	offset  uint64
	entries []string
	dir     bool
}

// fakeSFTP is an in-memory SFTP server.
type fakeSFTP struct {
	log *[]string

	files map[string][]byte
	dirs  map[string][]string
	perms map[string]uint32

	handles     map[Handle]*fakeHandle
	nextHandle  int
	closes      int
	closeBlocks int

	lastStatus sshfx.Status

	maxRead  int
	maxWrite int

	blockReads   bool
	blockReadDir bool
	blockAll     bool

	posixUnsupported bool
	posixCalls       int
	renameFlags      []RenameFlag
	opens            []OpenFlag
	openPerms        []uint32
}

func newFakeSFTP(log *[]string) *fakeSFTP {
	return &fakeSFTP{
		log:     log,
		files:   make(map[string][]byte),
		dirs:    map[string][]string{"/": nil},
		perms:   make(map[string]uint32),
		handles: make(map[Handle]*fakeHandle),
	}
}

func (f *fakeSFTP) fail(code sshfx.Status) error {
	f.lastStatus = code
	return &EngineError{Code: CodeSFTPProtocol, Message: code.String()}
}

func (f *fakeSFTP) RealPath(p string) (string, error) {
	if f.blockAll {
		return "", iox.ErrWouldBlock
	}

	if p == "." {
		return "/home/user", nil
	}
	return p, nil
}

func (f *fakeSFTP) Stat(p string, followLinks bool) (FileAttrs, error) {
	if data, ok := f.files[p]; ok {
		return FileAttrs{
			Flags:       AttrSize | AttrPermissions | AttrUIDGID | AttrACModTime,
			Size:        uint64(len(data)),
			Permissions: uint32(sshfx.ModeRegular) | f.perms[p],
			UID:         1000,
			GID:         100,
			ATime:       1700000000,
			MTime:       1700000001,
		}, nil
	}

	if _, ok := f.dirs[p]; ok {
		return FileAttrs{
			Flags:       AttrPermissions,
			Permissions: uint32(sshfx.ModeDir) | 0o755,
		}, nil
	}

	return FileAttrs{}, f.fail(sshfx.StatusNoSuchFile)
}

func (f *fakeSFTP) newHandle(h *fakeHandle) Handle {
	f.nextHandle++
	handle := Handle(strconv.Itoa(f.nextHandle))
	f.handles[handle] = h
	return handle
}

func (f *fakeSFTP) Open(p string, flags OpenFlag, perm uint32) (Handle, error) {
	f.opens = append(f.opens, flags)
	f.openPerms = append(f.openPerms, perm)

	data, ok := f.files[p]
	switch {
	case !ok && flags&OpenCreate == 0:
		return "", f.fail(sshfx.StatusNoSuchFile)
	case !ok, flags&OpenTruncate != 0:
		data = nil
		f.perms[p] = perm
	}
	f.files[p] = data

	return f.newHandle(&fakeHandle{path: p, flags: flags}), nil
}

func (f *fakeSFTP) OpenDir(p string) (Handle, error) {
	entries, ok := f.dirs[p]
	if !ok {
		return "", f.fail(sshfx.StatusNoSuchFile)
	}

	all := append([]string{".", ".."}, entries...)
	return f.newHandle(&fakeHandle{path: p, entries: all, dir: true}), nil
}

func (f *fakeSFTP) Read(h Handle, b []byte) (int, error) {
	if f.blockReads {
		return 0, iox.ErrWouldBlock
	}

	fh, ok := f.handles[h]
	if !ok {
		return 0, f.fail(sshfx.StatusInvalidHandle)
	}

	data := f.files[fh.path]
	if fh.offset >= uint64(len(data)) {
		return 0, io.EOF
	}

	if f.maxRead > 0 && len(b) > f.maxRead {
		b = b[:f.maxRead]
	}

	n := copy(b, data[fh.offset:])
	fh.offset += uint64(n)
	return n, nil
}

func (f *fakeSFTP) Write(h Handle, b []byte) (int, error) {
	fh, ok := f.handles[h]
	if !ok {
		return 0, f.fail(sshfx.StatusInvalidHandle)
	}

	if f.maxWrite > 0 && len(b) > f.maxWrite {
		b = b[:f.maxWrite]
	}

	data := f.files[fh.path]
	if fh.flags&OpenAppend != 0 {
		fh.offset = uint64(len(data))
	}

	if end := fh.offset + uint64(len(b)); end > uint64(len(data)) {
		data = append(data, make([]byte, end-uint64(len(data)))...)
	}

	copy(data[fh.offset:], b)
	fh.offset += uint64(len(b))
	f.files[fh.path] = data

	return len(b), nil
}

func (f *fakeSFTP) Seek(h Handle, offset uint64) {
	if fh, ok := f.handles[h]; ok {
		fh.offset = offset
	}
}

func (f *fakeSFTP) ReadDir(h Handle) (string, FileAttrs, error) {
	if f.blockReadDir {
		return "", FileAttrs{}, iox.ErrWouldBlock
	}

	fh, ok := f.handles[h]
	if !ok || !fh.dir {
		return "", FileAttrs{}, f.fail(sshfx.StatusInvalidHandle)
	}

	if len(fh.entries) == 0 {
		return "", FileAttrs{}, io.EOF
	}

	name := fh.entries[0]
	fh.entries = fh.entries[1:]

	attrs, err := f.Stat(joinPath(fh.path, name), false)
	if err != nil {
		attrs = FileAttrs{Flags: AttrPermissions, Permissions: uint32(sshfx.ModeDir) | 0o755}
	}

	return name, attrs, nil
}

func (f *fakeSFTP) Close(h Handle) error {
	if f.closeBlocks > 0 {
		f.closeBlocks--
		return iox.ErrWouldBlock
	}

	if _, ok := f.handles[h]; !ok {
		return f.fail(sshfx.StatusInvalidHandle)
	}

	delete(f.handles, h)
	f.closes++
	return nil
}

func (f *fakeSFTP) Mkdir(p string, perm uint32) error {
	if _, ok := f.dirs[p]; ok {
		return f.fail(sshfx.StatusFailure)
	}

	f.dirs[p] = nil
	f.perms[p] = perm
	return nil
}

func (f *fakeSFTP) Rmdir(p string) error {
	entries, ok := f.dirs[p]
	switch {
	case !ok:
		return f.fail(sshfx.StatusNoSuchFile)
	case len(entries) > 0:
		return f.fail(sshfx.StatusDirNotEmpty)
	}

	delete(f.dirs, p)
	return nil
}

func (f *fakeSFTP) Unlink(p string) error {
	if _, ok := f.files[p]; !ok {
		return f.fail(sshfx.StatusNoSuchFile)
	}

	delete(f.files, p)
	return nil
}

func (f *fakeSFTP) Rename(oldPath, newPath string, flags RenameFlag) error {
	f.renameFlags = append(f.renameFlags, flags)
	return f.move(oldPath, newPath)
}

func (f *fakeSFTP) PosixRename(oldPath, newPath string) error {
	f.posixCalls++
	if f.posixUnsupported {
		return f.fail(sshfx.StatusOPUnsupported)
	}

	return f.move(oldPath, newPath)
}

func (f *fakeSFTP) move(oldPath, newPath string) error {
	data, ok := f.files[oldPath]
	if !ok {
		return f.fail(sshfx.StatusNoSuchFile)
	}

	delete(f.files, oldPath)
	f.files[newPath] = data
	return nil
}

func (f *fakeSFTP) LastStatus() uint32 { return uint32(f.lastStatus) }

func (f *fakeSFTP) Shutdown() error {
	if f.blockAll {
		return iox.ErrWouldBlock
	}

	*f.log = append(*f.log, "sftp-shutdown")
	return nil
}

// addFile puts a file into the fake tree, registering it with its directory.
func (f *fakeSFTP) addFile(dir, name string, data []byte) {
	f.files[joinPath(dir, name)] = data
	f.perms[joinPath(dir, name)] = 0o644
	f.dirs[dir] = append(f.dirs[dir], name)
	sort.Strings(f.dirs[dir])
}

// addDir adds an empty directory to the fake tree.
func (f *fakeSFTP) addDir(dir, name string) {
	f.dirs[joinPath(dir, name)] = nil
	f.dirs[dir] = append(f.dirs[dir], name)
	sort.Strings(f.dirs[dir])
}

// harness wires a Session to the fakes.
type harness struct {
	log     []string
	socket  *fakeSocket
	engine  *fakeEngine
	sftp    *fakeSFTP
	session *Session
}

func newHarness(opts ...Option) *harness {
	h := new(harness)
	h.socket = newFakeSocket(&h.log)
	h.sftp = newFakeSFTP(&h.log)
	h.engine = &fakeEngine{
		log:     &h.log,
		sftp:    h.sftp,
		hostKey: HostKey{Type: HostKeyEd25519, Data: []byte("host key")},
		methods: Methods{KeyExchange: "curve25519-sha256"},
	}

	h.session = New(h.socket, func(*Transport) (Engine, error) {
		return h.engine, nil
	}, opts...)

	return h
}

// loggedIn connects and logs in, and clears the call log.
func (h *harness) loggedIn() *harness {
	if r := h.session.Connect("example.com", 22, After(time.Second)); !r.IsOk() {
		panic(r.String())
	}

	if r := h.session.LoginPassword("user", "secret", After(time.Second)); !r.IsOk() {
		panic(r.String())
	}

	h.log = nil
	return h
}
