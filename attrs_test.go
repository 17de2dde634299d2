package nbsftp

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
)

func TestPermissionsRoundTrip(t *testing.T) {
	for perm := fs.FileMode(0); perm <= 0o777; perm++ {
		wire := permissionsToWire(perm)
		assert.Equal(t, uint32(perm), wire, "mode %o", perm)
		assert.Equal(t, perm, permissionsFromWire(wire), "mode %o", perm)
	}
}

func TestPermissionsIgnoreOtherBits(t *testing.T) {
	assert.Equal(t, uint32(0o644), permissionsToWire(fs.ModeDir|fs.ModeSetuid|0o644))
	assert.Equal(t, fs.FileMode(0o755), permissionsFromWire(uint32(sshfx.ModeDir|sshfx.ModeSetUID|0o755)))
}

func TestFileTypeFromWire(t *testing.T) {
	for _, tt := range []struct {
		mode sshfx.FileMode
		want FileType
	}{
		{sshfx.ModeRegular, TypeRegular},
		{sshfx.ModeDir, TypeDirectory},
		{sshfx.ModeSymlink, TypeSymlink},
		{sshfx.ModeDevice, TypeBlockDevice},
		{sshfx.ModeCharDevice, TypeCharacterDevice},
		{sshfx.ModeNamedPipe, TypeFIFO},
		{sshfx.ModeSocket, TypeSocket},
		{0, TypeUnknown},
	} {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, fileTypeFromWire(uint32(tt.mode|0o644)))
		})
	}
}

func TestAttributesFromWire(t *testing.T) {
	a := attributesFromWire("/srv/data.bin", FileAttrs{
		Flags:       AttrSize | AttrUIDGID | AttrPermissions | AttrACModTime,
		Size:        42,
		UID:         1000,
		GID:         100,
		Permissions: uint32(sshfx.ModeRegular) | 0o640,
		ATime:       1700000000,
		MTime:       1700000060,
	})

	require.NotNil(t, a.Size)
	require.NotNil(t, a.Type)
	require.NotNil(t, a.Permissions)
	require.NotNil(t, a.UserID)
	require.NotNil(t, a.GroupID)
	require.NotNil(t, a.AccessTime)
	require.NotNil(t, a.ModificationTime)

	assert.Equal(t, "/srv/data.bin", a.Path)
	assert.Equal(t, "data.bin", a.Name())
	assert.Equal(t, uint64(42), *a.Size)
	assert.Equal(t, TypeRegular, *a.Type)
	assert.Equal(t, fs.FileMode(0o640), *a.Permissions)
	assert.Equal(t, uint64(1000), *a.UserID)
	assert.Equal(t, uint64(100), *a.GroupID)
	assert.Equal(t, time.Unix(1700000000, 0), *a.AccessTime)
	assert.Equal(t, time.Unix(1700000060, 0), *a.ModificationTime)
	assert.False(t, a.IsDir())
}

func TestAttributesFromWireOnlyWhatWasSent(t *testing.T) {
	a := attributesFromWire("/srv", FileAttrs{Flags: AttrSize, Size: 7, Permissions: 0o777, UID: 5})

	require.NotNil(t, a.Size)
	assert.Nil(t, a.Type)
	assert.Nil(t, a.Permissions)
	assert.Nil(t, a.UserID)
	assert.Nil(t, a.GroupID)
	assert.Nil(t, a.AccessTime)
	assert.Nil(t, a.ModificationTime)
}

func TestAttributesFileInfo(t *testing.T) {
	a := attributesFromWire("/srv/logs", FileAttrs{
		Flags:       AttrPermissions | AttrACModTime,
		Permissions: uint32(sshfx.ModeDir) | 0o750,
		MTime:       1700000000,
	})

	fi := a.FileInfo()
	assert.Equal(t, "logs", fi.Name())
	assert.True(t, fi.IsDir())
	assert.Equal(t, fs.ModeDir|0o750, fi.Mode())
	assert.Equal(t, int64(0), fi.Size())
	assert.Equal(t, time.Unix(1700000000, 0), fi.ModTime())
	assert.Equal(t, a, fi.Sys())

	link := attributesFromWire("/srv/current", FileAttrs{
		Flags:       AttrPermissions,
		Permissions: uint32(sshfx.ModeSymlink) | 0o777,
	})
	assert.Equal(t, fs.ModeSymlink|0o777, link.FileInfo().Mode())
}
