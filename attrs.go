package nbsftp

// SSH_FXP_ATTRS support
// see http://tools.ietf.org/html/draft-ietf-secsh-filexfer-02#section-5

import (
	"io/fs"
	"path"
	"time"

	sshfx "github.com/pkg/nbsftp/internal/encoding/ssh/filexfer"
)

// FileType is the kind of a remote directory entry.
type FileType int

// File types.
const (
	TypeUnknown FileType = iota
	TypeRegular
	TypeDirectory
	TypeSymlink
	TypeBlockDevice
	TypeCharacterDevice
	TypeFIFO
	TypeSocket
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	case TypeBlockDevice:
		return "block"
	case TypeCharacterDevice:
		return "character"
	case TypeFIFO:
		return "fifo"
	case TypeSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// Attributes is the metadata of one remote entry.
// Every field but Path is optional and nil when the server did not report it.
type Attributes struct {
	Path             string
	Type             *FileType
	Size             *uint64
	Permissions      *fs.FileMode
	UserID           *uint64
	GroupID          *uint64
	AccessTime       *time.Time
	ModificationTime *time.Time
}

// Name returns the last element of the entry's path.
func (a Attributes) Name() string {
	return path.Base(a.Path)
}

// IsDir reports whether the entry is known to be a directory.
func (a Attributes) IsDir() bool {
	return a.Type != nil && *a.Type == TypeDirectory
}

// attributesFromWire builds Attributes out of wire metadata.
// The type is only known when permissions were reported, and uid and gid travel together.
func attributesFromWire(p string, w FileAttrs) Attributes {
	a := Attributes{Path: p}

	if w.Flags&AttrSize != 0 {
		size := w.Size
		a.Size = &size
	}

	if w.Flags&AttrPermissions != 0 {
		typ := fileTypeFromWire(w.Permissions)
		perm := permissionsFromWire(w.Permissions)
		a.Type = &typ
		a.Permissions = &perm
	}

	if w.Flags&AttrUIDGID != 0 {
		uid, gid := uint64(w.UID), uint64(w.GID)
		a.UserID = &uid
		a.GroupID = &gid
	}

	if w.Flags&AttrACModTime != 0 {
		atime := time.Unix(int64(w.ATime), 0)
		mtime := time.Unix(int64(w.MTime), 0)
		a.AccessTime = &atime
		a.ModificationTime = &mtime
	}

	return a
}

func fileTypeFromWire(mode uint32) FileType {
	switch sshfx.FileMode(mode) & sshfx.ModeType {
	case sshfx.ModeRegular:
		return TypeRegular
	case sshfx.ModeDir:
		return TypeDirectory
	case sshfx.ModeSymlink:
		return TypeSymlink
	case sshfx.ModeDevice:
		return TypeBlockDevice
	case sshfx.ModeCharDevice:
		return TypeCharacterDevice
	case sshfx.ModeNamedPipe:
		return TypeFIFO
	case sshfx.ModeSocket:
		return TypeSocket
	default:
		return TypeUnknown
	}
}

var permissionBits = [...]struct {
	portable fs.FileMode
	wire     sshfx.FileMode
}{
	{0o400, sshfx.ModeUserRead},
	{0o200, sshfx.ModeUserWrite},
	{0o100, sshfx.ModeUserExec},
	{0o040, sshfx.ModeGroupRead},
	{0o020, sshfx.ModeGroupWrite},
	{0o010, sshfx.ModeGroupExec},
	{0o004, sshfx.ModeOtherRead},
	{0o002, sshfx.ModeOtherWrite},
	{0o001, sshfx.ModeOtherExec},
}

// permissionsToWire converts the nine permission bits of perm to wire mode bits.
// Everything else in perm is ignored.
func permissionsToWire(perm fs.FileMode) uint32 {
	var mode sshfx.FileMode

	for _, bit := range permissionBits {
		if perm&bit.portable != 0 {
			mode |= bit.wire
		}
	}

	return uint32(mode)
}

// permissionsFromWire extracts the nine permission bits of a wire mode.
func permissionsFromWire(mode uint32) fs.FileMode {
	var perm fs.FileMode

	for _, bit := range permissionBits {
		if sshfx.FileMode(mode)&bit.wire != 0 {
			perm |= bit.portable
		}
	}

	return perm
}

// fileMode folds the type and permissions of a into an fs.FileMode.
func (a Attributes) fileMode() fs.FileMode {
	var mode fs.FileMode
	if a.Permissions != nil {
		mode = *a.Permissions
	}

	if a.Type == nil {
		return mode
	}

	switch *a.Type {
	case TypeDirectory:
		mode |= fs.ModeDir
	case TypeSymlink:
		mode |= fs.ModeSymlink
	case TypeBlockDevice:
		mode |= fs.ModeDevice
	case TypeCharacterDevice:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case TypeFIFO:
		mode |= fs.ModeNamedPipe
	case TypeSocket:
		mode |= fs.ModeSocket
	case TypeUnknown:
		mode |= fs.ModeIrregular
	}

	return mode
}

// fileInfo adapts Attributes to fs.FileInfo.
type fileInfo struct {
	attrs Attributes
}

// FileInfo returns a as an fs.FileInfo.
func (a Attributes) FileInfo() fs.FileInfo { return fileInfo{attrs: a} }

// Name returns the base name of the file.
func (fi fileInfo) Name() string { return fi.attrs.Name() }

// Size returns the length in bytes for regular files; system-dependent for others.
func (fi fileInfo) Size() int64 {
	if fi.attrs.Size == nil {
		return 0
	}

	return int64(*fi.attrs.Size)
}

// Mode returns file mode bits.
func (fi fileInfo) Mode() fs.FileMode { return fi.attrs.fileMode() }

// ModTime returns the last modification time of the file.
func (fi fileInfo) ModTime() time.Time {
	if fi.attrs.ModificationTime == nil {
		return time.Time{}
	}

	return *fi.attrs.ModificationTime
}

// IsDir returns true if the file is a directory.
func (fi fileInfo) IsDir() bool { return fi.attrs.IsDir() }

// Sys returns the underlying Attributes.
func (fi fileInfo) Sys() interface{} { return fi.attrs }
