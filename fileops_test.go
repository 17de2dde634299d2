package nbsftp

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingDirectory(t *testing.T) {
	h := newHarness().loggedIn()

	r := h.session.WorkingDirectory(After(time.Second))
	require.True(t, r.IsOk(), r.String())
	assert.Equal(t, "/home/user", r.Path())
}

func TestResolvePathTimeout(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.blockAll = true
	h.socket.selector.never = true

	r := h.session.ResolvePath("/tmp", After(time.Millisecond))
	assert.Equal(t, StatusTimeout, r.Status())
	assert.Empty(t, r.Path())
}

func TestAttributesNoSuchFile(t *testing.T) {
	h := newHarness().loggedIn()

	r := h.session.Attributes("/nope", true, After(time.Second))
	assert.Equal(t, StatusSFTPNoSuchFile, r.Status())
	assert.Equal(t, "No such file", r.Message())
	assert.Equal(t, Attributes{}, r.Attributes())
}

func TestAttributes(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.addFile("/", "notes.txt", []byte("hello"))

	r := h.session.Attributes("/notes.txt", false, After(time.Second))
	require.True(t, r.IsOk(), r.String())

	a := r.Attributes()
	assert.Equal(t, "/notes.txt", a.Path)
	require.NotNil(t, a.Size)
	assert.Equal(t, uint64(5), *a.Size)
	require.NotNil(t, a.Type)
	assert.Equal(t, TypeRegular, *a.Type)
	require.NotNil(t, a.Permissions)
	assert.Equal(t, fs.FileMode(0o644), *a.Permissions)
}

func TestDirectoryListing(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.addDir("/", "srv")
	h.sftp.addFile("/srv", "a.txt", []byte("a"))
	h.sftp.addDir("/srv", "sub")

	r := h.session.DirectoryListing("/srv", After(time.Second))
	require.True(t, r.IsOk(), r.String())

	var paths []string
	for _, a := range r.Listing() {
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{"/srv/.", "/srv/..", "/srv/a.txt", "/srv/sub"}, paths)

	assert.True(t, r.Listing()[3].IsDir())
	assert.Empty(t, h.sftp.handles)
}

func TestDirectoryListingMissing(t *testing.T) {
	h := newHarness().loggedIn()

	r := h.session.DirectoryListing("/nope", After(time.Second))
	assert.Equal(t, StatusSFTPNoSuchFile, r.Status())
	assert.Nil(t, r.Listing())
}

func TestDirectoryListingTimeoutClosesHandle(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.addDir("/", "srv")
	h.sftp.blockReadDir = true
	h.socket.selector.never = true

	r := h.session.DirectoryListing("/srv", After(time.Millisecond))
	assert.Equal(t, StatusTimeout, r.Status())
	assert.Nil(t, r.Listing())
	assert.Equal(t, 1, h.sftp.closes)
	assert.Empty(t, h.sftp.handles)
}

func TestDirectoryListingTimeoutDrivesClose(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.addDir("/", "srv")
	h.sftp.blockReadDir = true
	h.sftp.closeBlocks = 2
	h.socket.selector.script = []bool{false}

	r := h.session.DirectoryListing("/srv", After(time.Millisecond))
	assert.Equal(t, StatusTimeout, r.Status())
	assert.Equal(t, 1, h.sftp.closes)
	assert.Empty(t, h.sftp.handles)
}

func TestCreateAndDeleteDirectory(t *testing.T) {
	h := newHarness().loggedIn()
	tm := After(time.Second)

	require.True(t, h.session.CreateDirectory("/new", 0o700, tm).IsOk())
	assert.Equal(t, uint32(0o700), h.sftp.perms["/new"])

	assert.Equal(t, StatusSFTPFailure, h.session.CreateDirectory("/new", 0o700, tm).Status())

	require.True(t, h.session.DeleteDirectory("/new", tm).IsOk())
	assert.Equal(t, StatusSFTPNoSuchFile, h.session.DeleteDirectory("/new", tm).Status())
}

func TestDeleteDirectoryNotEmpty(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.addDir("/", "full")
	h.sftp.addFile("/full", "x", nil)

	r := h.session.DeleteDirectory("/full", After(time.Second))
	assert.Equal(t, StatusSFTPDirectoryNotEmpty, r.Status())
}

func TestDeleteFile(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.addFile("/", "gone", []byte("x"))

	require.True(t, h.session.DeleteFile("/gone", After(time.Second)).IsOk())
	assert.NotContains(t, h.sftp.files, "/gone")

	assert.Equal(t, StatusSFTPNoSuchFile, h.session.DeleteFile("/gone", After(time.Second)).Status())
}

func TestRenamePrefersPosixRename(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.files["/a"] = []byte("a")

	require.True(t, h.session.Rename("/a", "/b", true, After(time.Second)).IsOk())
	assert.Equal(t, 1, h.sftp.posixCalls)
	assert.Empty(t, h.sftp.renameFlags)
	assert.Equal(t, []byte("a"), h.sftp.files["/b"])
}

func TestRenameFallsBackOnce(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.posixUnsupported = true
	h.sftp.files["/a"] = []byte("a")
	h.sftp.files["/c"] = []byte("c")

	require.True(t, h.session.Rename("/a", "/b", true, After(time.Second)).IsOk())
	assert.Equal(t, 1, h.sftp.posixCalls)
	assert.Equal(t, []RenameFlag{RenameOverwrite}, h.sftp.renameFlags)
	assert.False(t, h.session.posixRenameSupported)

	require.True(t, h.session.Rename("/c", "/d", true, After(time.Second)).IsOk())
	assert.Equal(t, 1, h.sftp.posixCalls)
	assert.Equal(t, []RenameFlag{RenameOverwrite, RenameOverwrite}, h.sftp.renameFlags)
}

func TestRenameWithoutOverwrite(t *testing.T) {
	h := newHarness().loggedIn()
	h.sftp.files["/a"] = []byte("a")

	require.True(t, h.session.Rename("/a", "/b", false, After(time.Second)).IsOk())
	assert.Zero(t, h.sftp.posixCalls)
	assert.Equal(t, []RenameFlag{0}, h.sftp.renameFlags)
}

func TestRenameMissingSource(t *testing.T) {
	h := newHarness().loggedIn()

	r := h.session.Rename("/nope", "/b", true, After(time.Second))
	assert.Equal(t, StatusSFTPNoSuchFile, r.Status())
	assert.True(t, h.session.posixRenameSupported)
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/srv/a", joinPath("/srv", "a"))
	assert.Equal(t, "/a", joinPath("/", "a"))
	assert.Equal(t, "/srv/..", joinPath("/srv/", ".."))
	assert.Equal(t, "a", joinPath("", "a"))
}
