package nbsftp

import (
	"os"
	"path"
	"sort"

	"github.com/kr/fs"
)

// Walk returns a new Walker rooted at root.
// Every directory listing and stat made by the walk uses t.
func (s *Session) Walk(root string, t Timeout) *fs.Walker {
	return fs.WalkFS(root, walkFS{session: s, timeout: t})
}

// walkFS implements fs.FileSystem over a Session.
type walkFS struct {
	session *Session
	timeout Timeout
}

// ReadDir lists dirname without its "." and ".." entries, sorted by name.
func (w walkFS) ReadDir(dirname string) ([]os.FileInfo, error) {
	r := w.session.DirectoryListing(dirname, w.timeout)
	if !r.IsOk() {
		return nil, r.Err()
	}

	infos := make([]os.FileInfo, 0, len(r.Listing()))
	for _, a := range r.Listing() {
		if name := a.Name(); name == "." || name == ".." {
			continue
		}

		infos = append(infos, a.FileInfo())
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	return infos, nil
}

// Lstat returns the metadata of name without following links.
func (w walkFS) Lstat(name string) (os.FileInfo, error) {
	r := w.session.Attributes(name, false, w.timeout)
	if !r.IsOk() {
		return nil, r.Err()
	}

	return r.Attributes().FileInfo(), nil
}

// Join joins any number of path elements into a single path.
func (w walkFS) Join(elem ...string) string { return path.Join(elem...) }
