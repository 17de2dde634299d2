package nbsftp

import (
	"io"
	"io/fs"
	"time"

	"github.com/pkg/errors"
)

// Transfer buffers start small and grow by half each time a block fills one completely.
const (
	minTransferBuffer = 4 * 1024
	maxTransferBuffer = 1024 * 1024
)

func growTransferBuffer(n int) int {
	n = n * 3 / 2
	if n > maxTransferBuffer {
		n = maxTransferBuffer
	}
	return n
}

// DownloadFunc receives the file data block by block.
// The slice is only valid for the duration of the call; the last block may be empty.
// Returning false stops the download.
type DownloadFunc func(data []byte) bool

// UploadFunc fills buf with the next block of file data and reports how many
// bytes it wrote. Returning false for more marks the block as the last one.
type UploadFunc func(buf []byte) (n int, more bool)

// UploadOptions control how the remote file is opened.
type UploadOptions struct {
	// Permissions applies when the file has to be created.
	Permissions fs.FileMode

	// Truncate discards existing file content.
	Truncate bool

	// Append writes at the end of an existing file.
	Append bool

	// Offset is where writing starts.
	Offset uint64
}

// DefaultUploadOptions creates or truncates the file with DefaultFilePermissions.
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		Permissions: DefaultFilePermissions,
		Truncate:    true,
	}
}

// Download streams the content of the remote file p to fn, starting at offset.
func (s *Session) Download(p string, fn DownloadFunc, offset uint64, t Timeout) (r Result) {
	defer s.track("download", time.Now(), &r)

	if fn == nil {
		return NewResult(StatusError, "nil download callback")
	}

	if s.sftp == nil {
		return errNotLoggedIn
	}

	var h Handle
	err := s.drive(t, func() (err error) {
		h, err = s.sftp.Open(p, OpenRead, 0)
		return err
	})
	if err != nil {
		return s.outcome(err)
	}

	if offset > 0 {
		s.sftp.Seek(h, offset)
	}

	buf := make([]byte, minTransferBuffer)

	for {
		total := 0
		eof := false

		for total < len(buf) {
			var n int
			err := s.drive(t, func() (err error) {
				n, err = s.sftp.Read(h, buf[total:])
				return err
			})
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}

			if err != nil {
				res := s.outcome(err)
				s.abandon(h)
				return res
			}

			if n == 0 {
				eof = true
				break
			}

			total += n
		}

		s.metrics.addTransferred("download", total)

		if !fn(buf[:total]) || eof {
			break
		}

		if total == len(buf) && len(buf) < maxTransferBuffer {
			buf = make([]byte, growTransferBuffer(len(buf)))
		}
	}

	return s.outcome(s.drive(t, func() error { return s.sftp.Close(h) }))
}

// Upload writes the data produced by fn into the remote file p.
func (s *Session) Upload(p string, fn UploadFunc, opts UploadOptions, t Timeout) (r Result) {
	defer s.track("upload", time.Now(), &r)

	if fn == nil {
		return NewResult(StatusError, "nil upload callback")
	}

	if s.sftp == nil {
		return errNotLoggedIn
	}

	flags := OpenWrite | OpenCreate
	if opts.Truncate {
		flags |= OpenTruncate
	}
	if opts.Append {
		flags |= OpenAppend
	}

	var h Handle
	err := s.drive(t, func() (err error) {
		h, err = s.sftp.Open(p, flags, permissionsToWire(opts.Permissions))
		return err
	})
	if err != nil {
		return s.outcome(err)
	}

	if opts.Offset > 0 {
		s.sftp.Seek(h, opts.Offset)
	}

	buf := make([]byte, minTransferBuffer)

	for {
		size, more := fn(buf)
		if size < 0 || size > len(buf) {
			s.abandon(h)
			return NewResult(StatusError, "upload callback reported an invalid size")
		}

		for written := 0; written < size; {
			var n int
			err := s.drive(t, func() (err error) {
				n, err = s.sftp.Write(h, buf[written:size])
				return err
			})
			if err != nil {
				res := s.outcome(err)
				s.abandon(h)
				return res
			}

			if n == 0 {
				s.abandon(h)
				return NewResult(StatusError, "remote write made no progress")
			}

			written += n
		}

		s.metrics.addTransferred("upload", size)

		if !more {
			break
		}

		if size == len(buf) && len(buf) < maxTransferBuffer {
			buf = make([]byte, growTransferBuffer(len(buf)))
		}
	}

	return s.outcome(s.drive(t, func() error { return s.sftp.Close(h) }))
}
