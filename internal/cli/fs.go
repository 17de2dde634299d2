package cli

import (
	"context"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkg/nbsftp"
)

func newLsCmd(a *app) *cobra.Command {
	var recursive, long bool

	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := "."
			if len(args) > 0 {
				p = args[0]
			}

			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				out := cmd.OutOrStdout()

				if recursive {
					for w := s.Walk(p, a.timeout(ctx)); w.Step(); {
						if err := w.Err(); err != nil {
							return errors.Wrapf(err, "walk %s", w.Path())
						}

						if long {
							fmt.Fprintln(out, longLine(w.Stat(), w.Path()))
						} else {
							fmt.Fprintln(out, w.Path())
						}
					}
					return nil
				}

				r := s.DirectoryListing(p, a.timeout(ctx))
				if err := check(r.Result, "ls", p); err != nil {
					return err
				}

				for _, attrs := range visible(r.Listing()) {
					if long {
						fmt.Fprintln(out, longLine(attrs.FileInfo(), attrs.Name()))
					} else {
						fmt.Fprintln(out, attrs.Name())
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "list subdirectories recursively")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "use a long listing format")

	return cmd
}

func newStatCmd(a *app) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "stat PATH",
		Short: "Show the attributes of a remote file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				r := s.Attributes(args[0], follow, a.timeout(ctx))
				if err := check(r.Result, "stat", args[0]); err != nil {
					return err
				}

				writeStat(cmd.OutOrStdout(), r.Attributes())
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "dereference", "L", false, "follow symbolic links")

	return cmd
}

func newPwdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pwd",
		Short: "Print the remote working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				r := s.WorkingDirectory(a.timeout(ctx))
				if err := check(r.Result, "pwd", "."); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), r.Path())
				return nil
			})
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the server host key and negotiated algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				info, ok := s.SessionInfo()
				if !ok {
					return errors.New("no session information")
				}

				writeInfo(cmd.OutOrStdout(), info)
				return nil
			})
		},
	}
}

// modeFlag parses an octal permission string such as 0755.
func modeFlag(s string) (fs.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > 0o777 {
		return 0, errors.Errorf("invalid mode %q", s)
	}

	return fs.FileMode(v), nil
}

func newMkdirCmd(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm, err := modeFlag(mode)
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				return check(s.CreateDirectory(args[0], perm, a.timeout(ctx)), "mkdir", args[0])
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "0755", "permissions of the new directory")

	return cmd
}

func newRmdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir PATH",
		Short: "Remove an empty remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				return check(s.DeleteDirectory(args[0], a.timeout(ctx)), "rmdir", args[0])
			})
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH",
		Short: "Remove a remote file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				return check(s.DeleteFile(args[0], a.timeout(ctx)), "rm", args[0])
			})
		},
	}
}

func newMvCmd(a *app) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "mv OLD NEW",
		Short: "Rename a remote file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *nbsftp.Session) error {
				return check(s.Rename(args[0], args[1], overwrite, a.timeout(ctx)), "mv", args[0])
			})
		},
	}

	cmd.Flags().BoolVarP(&overwrite, "overwrite", "f", false, "replace NEW if it exists")

	return cmd
}
