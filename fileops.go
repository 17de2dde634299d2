package nbsftp

import (
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Default permissions for new remote entries.
const (
	DefaultDirectoryPermissions fs.FileMode = 0o755
	DefaultFilePermissions      fs.FileMode = 0o644
)

var errNotLoggedIn = NewResult(StatusError, "not logged in")

// ResolvePath asks the server for the absolute, canonical form of p.
func (s *Session) ResolvePath(p string, t Timeout) (r PathResult) {
	defer s.track("resolve", time.Now(), &r.Result)

	if s.sftp == nil {
		return NewPathResult(errNotLoggedIn, "")
	}

	var resolved string
	err := s.drive(t, func() (err error) {
		resolved, err = s.sftp.RealPath(p)
		return err
	})

	return NewPathResult(s.outcome(err), resolved)
}

// WorkingDirectory returns the directory relative paths are resolved against.
func (s *Session) WorkingDirectory(t Timeout) PathResult {
	return s.ResolvePath(".", t)
}

// Attributes returns the metadata of p. With followLinks a symbolic link
// reports the metadata of its target, otherwise of the link itself.
func (s *Session) Attributes(p string, followLinks bool, t Timeout) (r AttributesResult) {
	defer s.track("stat", time.Now(), &r.Result)

	if s.sftp == nil {
		return NewAttributesResult(errNotLoggedIn, Attributes{})
	}

	var attrs FileAttrs
	err := s.drive(t, func() (err error) {
		attrs, err = s.sftp.Stat(p, followLinks)
		return err
	})

	return NewAttributesResult(s.outcome(err), attributesFromWire(p, attrs))
}

// DirectoryListing returns every entry of the directory p, as reported by the server.
// Entry paths are p joined with the entry name.
func (s *Session) DirectoryListing(p string, t Timeout) (r ListingResult) {
	defer s.track("list", time.Now(), &r.Result)

	if s.sftp == nil {
		return NewListingResult(errNotLoggedIn, nil)
	}

	var h Handle
	err := s.drive(t, func() (err error) {
		h, err = s.sftp.OpenDir(p)
		return err
	})
	if err != nil {
		return NewListingResult(s.outcome(err), nil)
	}

	var listing []Attributes

	for {
		var name string
		var attrs FileAttrs

		err := s.drive(t, func() (err error) {
			name, attrs, err = s.sftp.ReadDir(h)
			return err
		})
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			res := s.outcome(err)
			s.abandon(h)
			return NewListingResult(res, nil)
		}

		listing = append(listing, attributesFromWire(joinPath(p, name), attrs))
	}

	err = s.drive(t, func() error { return s.sftp.Close(h) })

	return NewListingResult(s.outcome(err), listing)
}

// CreateDirectory creates the directory p with permissions perm.
func (s *Session) CreateDirectory(p string, perm fs.FileMode, t Timeout) (r Result) {
	defer s.track("mkdir", time.Now(), &r)

	if s.sftp == nil {
		return errNotLoggedIn
	}

	return s.outcome(s.drive(t, func() error {
		return s.sftp.Mkdir(p, permissionsToWire(perm))
	}))
}

// DeleteDirectory removes the empty directory p.
func (s *Session) DeleteDirectory(p string, t Timeout) (r Result) {
	defer s.track("rmdir", time.Now(), &r)

	if s.sftp == nil {
		return errNotLoggedIn
	}

	return s.outcome(s.drive(t, func() error {
		return s.sftp.Rmdir(p)
	}))
}

// DeleteFile removes the file p.
func (s *Session) DeleteFile(p string, t Timeout) (r Result) {
	defer s.track("remove", time.Now(), &r)

	if s.sftp == nil {
		return errNotLoggedIn
	}

	return s.outcome(s.drive(t, func() error {
		return s.sftp.Unlink(p)
	}))
}

// Rename moves oldPath to newPath.
//
// With overwrite, an existing newPath is replaced. The atomic posix-rename
// extension is preferred; once the server turns it down, the session stops
// asking for it and falls back to a plain rename with the overwrite flag.
func (s *Session) Rename(oldPath, newPath string, overwrite bool, t Timeout) (r Result) {
	defer s.track("rename", time.Now(), &r)

	if s.sftp == nil {
		return errNotLoggedIn
	}

	usePosix := overwrite && s.posixRenameSupported

	for {
		err := s.drive(t, func() error {
			if usePosix {
				return s.sftp.PosixRename(oldPath, newPath)
			}

			var flags RenameFlag
			if overwrite {
				flags = RenameOverwrite
			}
			return s.sftp.Rename(oldPath, newPath, flags)
		})

		res := s.outcome(err)
		if usePosix && res.Status() == StatusSFTPOperationUnsupported {
			s.log.Debug().Msg("posix-rename unsupported, falling back to rename")
			s.posixRenameSupported = false
			usePosix = false
			continue
		}

		return res
	}
}

// abandon closes h on a path that already failed, bounded by the close timeout.
func (s *Session) abandon(h Handle) {
	if err := s.drive(s.closeTimeout, func() error { return s.sftp.Close(h) }); err != nil {
		s.log.Debug().Err(err).Str("handle", string(h)).Msg("handle left open")
	}
}

// joinPath appends name to dir without cleaning, so "." and ".." entries keep their names.
func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}

	if strings.HasSuffix(dir, "/") {
		return dir + name
	}

	return dir + "/" + name
}
