//go:build unix

package sshengine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkg/nbsftp"
	"github.com/pkg/nbsftp/netsock"
)

var integrationTimeout = nbsftp.After(10 * time.Second)

func testSession(t *testing.T) *nbsftp.Session {
	t.Helper()

	if !*testIntegration {
		t.Skip("skipping integration test")
	}

	srv := startServer(t, nil)
	if srv.sftpServer == "" {
		t.Skip("no sftp-server binary")
	}

	s := nbsftp.New(netsock.New(), Factory(Config{User: "user"}))
	t.Cleanup(func() { s.Close() })

	r := s.Connect("127.0.0.1", srv.port, integrationTimeout)
	require.True(t, r.IsOk(), r.String())

	r = s.LoginPassword("user", "secret", integrationTimeout)
	require.True(t, r.IsOk(), r.String())

	return s
}

func TestSessionFileOperations(t *testing.T) {
	s := testSession(t)
	dir := t.TempDir()

	wd := s.WorkingDirectory(integrationTimeout)
	require.True(t, wd.IsOk(), wd.String())
	assert.NotEmpty(t, wd.Path())

	sub := filepath.Join(dir, "sub")
	r := s.CreateDirectory(sub, 0o755, integrationTimeout)
	require.True(t, r.IsOk(), r.String())

	info, err := os.Stat(sub)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	attrs := s.Attributes(sub, true, integrationTimeout)
	require.True(t, attrs.IsOk(), attrs.String())
	assert.True(t, attrs.Attributes().IsDir())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0o644))

	listing := s.DirectoryListing(dir, integrationTimeout)
	require.True(t, listing.IsOk(), listing.String())

	var names []string
	for _, a := range listing.Listing() {
		names = append(names, a.Name())
	}
	assert.ElementsMatch(t, []string{".", "..", "a.txt", "sub"}, names)

	r = s.Rename(filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt"), true, integrationTimeout)
	require.True(t, r.IsOk(), r.String())
	assert.FileExists(t, filepath.Join(dir, "b.txt"))

	r = s.DeleteFile(filepath.Join(dir, "b.txt"), integrationTimeout)
	require.True(t, r.IsOk(), r.String())
	assert.NoFileExists(t, filepath.Join(dir, "b.txt"))

	r = s.DeleteDirectory(sub, integrationTimeout)
	require.True(t, r.IsOk(), r.String())

	missing := s.Attributes(sub, true, integrationTimeout)
	assert.Equal(t, nbsftp.StatusSFTPNoSuchFile, missing.Status())
}

func TestSessionTransfer(t *testing.T) {
	s := testSession(t)
	p := filepath.Join(t.TempDir(), "data")

	want := bytes.Repeat([]byte("0123456789abcdef"), 20000)

	src := want
	r := s.Upload(p, func(buf []byte) (int, bool) {
		n := copy(buf, src)
		src = src[n:]
		return n, len(src) > 0
	}, nbsftp.DefaultUploadOptions(), integrationTimeout)
	require.True(t, r.IsOk(), r.String())

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	var downloaded []byte
	r = s.Download(p, func(data []byte) bool {
		downloaded = append(downloaded, data...)
		return true
	}, 0, integrationTimeout)
	require.True(t, r.IsOk(), r.String())
	assert.Equal(t, want, downloaded)
}

func TestSessionWalk(t *testing.T) {
	s := testSession(t)
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "c.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hi"), 0o644))

	var visited []string
	for w := s.Walk(dir, integrationTimeout); w.Step(); {
		require.NoError(t, w.Err())
		rel, err := filepath.Rel(dir, w.Path())
		require.NoError(t, err)
		visited = append(visited, rel)
	}

	assert.Equal(t, []string{".", "a", filepath.Join("a", "c.txt"), "b.txt"}, visited)
}

func TestSessionDisconnect(t *testing.T) {
	s := testSession(t)

	info, ok := s.SessionInfo()
	require.True(t, ok)
	assert.Equal(t, nbsftp.HostKeyEd25519, info.HostKey.Type)

	r := s.Disconnect(integrationTimeout)
	require.True(t, r.IsOk(), r.String())

	r = s.Disconnect(integrationTimeout)
	assert.True(t, r.IsOk(), r.String())

	wd := s.WorkingDirectory(integrationTimeout)
	assert.False(t, wd.IsOk())
}

func TestEngineAbandonedReadIsNotReused(t *testing.T) {
	if !*testIntegration {
		t.Skip("skipping integration test")
	}

	srv := startServer(t, nil)
	if srv.sftpServer == "" {
		t.Skip("no sftp-server binary")
	}

	e, sock := engineOver(t, srv, Config{User: "user", Settle: time.Nanosecond})
	require.NoError(t, drive(t, e, sock, e.Handshake))
	require.NoError(t, drive(t, e, sock, func() error { return e.AuthPassword("user", "secret") }))

	var c nbsftp.SFTP
	require.NoError(t, drive(t, e, sock, func() (err error) {
		c, err = e.StartSFTP()
		return err
	}))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("aaaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("bbbb"), 0o644))

	open := func(name string) nbsftp.Handle {
		var h nbsftp.Handle
		require.NoError(t, drive(t, e, sock, func() (err error) {
			h, err = c.Open(filepath.Join(dir, name), nbsftp.OpenRead, 0)
			return err
		}))
		return h
	}

	buf := make([]byte, 4)

	ha := open("a")
	if _, err := c.Read(ha, buf); !iox.IsWouldBlock(err) {
		t.Skip("read finished before it could be abandoned")
	}

	e.Abandon()
	require.NoError(t, drive(t, e, sock, func() error { return c.Close(ha) }))

	hb := open("b")

	var n int
	require.NoError(t, drive(t, e, sock, func() (err error) {
		n, err = c.Read(hb, buf)
		return err
	}))
	assert.Equal(t, "bbbb", string(buf[:n]))

	require.NoError(t, drive(t, e, sock, func() error { return c.Close(hb) }))
}

func TestSessionTimedOutDownloadLeavesNoState(t *testing.T) {
	s := testSession(t)
	dir := t.TempDir()

	a := bytes.Repeat([]byte("a"), 1<<20)
	b := bytes.Repeat([]byte("b"), 4096)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), a, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), b, 0o644))

	// give up as soon as the first wait comes back empty.
	impatient := nbsftp.Until(func() bool { return false }).Every(time.Nanosecond)

	for i := 0; i < 20; i++ {
		r := s.Download(filepath.Join(dir, "a"), func([]byte) bool { return true }, 0, impatient)
		if r.Status() == nbsftp.StatusTimeout {
			break
		}
		require.True(t, r.IsOk(), r.String())
	}

	var got []byte
	r := s.Download(filepath.Join(dir, "b"), func(data []byte) bool {
		got = append(got, data...)
		return true
	}, 0, integrationTimeout)
	require.True(t, r.IsOk(), r.String())
	assert.Equal(t, b, got)
}
