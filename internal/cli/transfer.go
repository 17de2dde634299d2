package cli

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkg/nbsftp"
)

func newGetCmd(a *app) *cobra.Command {
	var offset uint64

	cmd := &cobra.Command{
		Use:   "get REMOTE LOCAL",
		Short: "Download a remote file",
		Long:  "Download a remote file. With --offset the download resumes at that byte of both files.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, local := args[0], args[1]

			flags := os.O_WRONLY | os.O_CREATE
			if offset == 0 {
				flags |= os.O_TRUNC
			}

			f, err := os.OpenFile(local, flags, 0o644)
			if err != nil {
				return err
			}
			defer f.Close()

			if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
				return errors.Wrapf(err, "seek %s", local)
			}

			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				var werr error

				r := s.Download(remote, func(data []byte) bool {
					_, werr = f.Write(data)
					return werr == nil
				}, offset, a.timeout(ctx))

				if werr != nil {
					return errors.Wrapf(werr, "write %s", local)
				}

				if err := check(r, "get", remote); err != nil {
					return err
				}

				return f.Close()
			})
		},
	}

	cmd.Flags().Uint64Var(&offset, "offset", 0, "byte offset to start at")

	return cmd
}

// fill reads a full block from r and reports whether more may follow.
func fill(r io.Reader, buf []byte, rerr *error) (int, bool) {
	n, err := io.ReadFull(r, buf)
	switch err {
	case nil:
		return n, true
	case io.EOF, io.ErrUnexpectedEOF:
		return n, false
	default:
		*rerr = err
		return n, false
	}
}

func newPutCmd(a *app) *cobra.Command {
	var (
		appendTo bool
		mode     string
	)

	cmd := &cobra.Command{
		Use:   "put LOCAL REMOTE",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, remote := args[0], args[1]

			perm, err := modeFlag(mode)
			if err != nil {
				return err
			}

			f, err := os.Open(local)
			if err != nil {
				return err
			}
			defer f.Close()

			opts := nbsftp.DefaultUploadOptions()
			opts.Permissions = perm
			if appendTo {
				opts.Truncate = false
				opts.Append = true
			}

			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				var rerr error

				r := s.Upload(remote, func(buf []byte) (int, bool) {
					return fill(f, buf, &rerr)
				}, opts, a.timeout(ctx))

				if rerr != nil {
					return errors.Wrapf(rerr, "read %s", local)
				}

				return check(r, "put", remote)
			})
		},
	}

	cmd.Flags().BoolVarP(&appendTo, "append", "a", false, "append to the remote file")
	cmd.Flags().StringVarP(&mode, "mode", "m", "0644", "permissions of a newly created file")

	return cmd
}
