package documents

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/theapemachine/docprovider/pkg/errors"
)

/*
mount is one configured root. Its filesystem is a BasePathFs over the root's
base directory, so no name handed to it can reach outside the base even if a
relative path slipped past cleanRel.
*/
type mount struct {
	cfg  RootConfig
	base string
	// title is the base name of the configured path, before links resolve.
	title string
	fs    afero.Fs
	// private holds paths below the root that are never shown, like the
	// provider's own index file.
	private []string
}

func newMount(backing afero.Fs, cfg RootConfig) (*mount, error) {
	base := filepath.Clean(cfg.Path)

	if _, ok := backing.(*afero.OsFs); ok {
		abs, err := filepath.Abs(base)
		if err != nil {
			return nil, err
		}

		base = abs
	}

	if err := backing.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}

	title := filepath.Base(base)

	// A root configured through a link (~/ on some systems) is mounted at
	// its target; links below the root are still refused by stat.
	if _, ok := backing.(*afero.OsFs); ok {
		resolved, err := filepath.EvalSymlinks(base)
		if err != nil {
			return nil, err
		}

		base = resolved
	}

	return &mount{
		cfg:   cfg,
		base:  base,
		title: title,
		fs:    afero.NewBasePathFs(backing, base),
	}, nil
}

/*
hostPath resolves p the way newMount resolves a base, so the two compare.
The file itself need not exist yet.
*/
func hostPath(backing afero.Fs, p string) string {
	p = filepath.Clean(p)

	if _, ok := backing.(*afero.OsFs); !ok {
		return p
	}

	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}

	if dir, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		p = filepath.Join(dir, filepath.Base(p))
	}

	return p
}

// name converts a relative slash path into a name for the mount filesystem.
func (m *mount) name(rel string) string {
	return string(filepath.Separator) + filepath.FromSlash(rel)
}

func (m *mount) lstat(name string) (os.FileInfo, error) {
	if lst, ok := m.fs.(afero.Lstater); ok {
		info, _, err := lst.LstatIfPossible(name)
		return info, err
	}

	return m.fs.Stat(name)
}

/*
stat returns the FileInfo for rel. Symbolic links are never followed: a link
anywhere along the path reports not found, so a link inside the root cannot
expose what lies outside it.
*/
func (m *mount) stat(op, id, rel string) (os.FileInfo, error) {
	var (
		info os.FileInfo
		err  error
		walk string
	)

	if info, err = m.fs.Stat(m.name("")); err != nil {
		return nil, errors.FromFS(op, id, err)
	}

	if m.isPrivate(rel) {
		return nil, errors.Newf(errors.NotFound, op, id, "no such document")
	}

	for _, seg := range segments(rel) {
		walk = joinRel(walk, seg)

		if info, err = m.lstat(m.name(walk)); err != nil {
			return nil, errors.FromFS(op, id, err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return nil, errors.Newf(errors.NotFound, op, id, "%s is a symbolic link", walk)
		}
	}

	return info, nil
}

func (m *mount) document(id, rel string, info os.FileInfo) Document {
	name := path.Base("/" + rel)
	if rel == "" {
		name = m.title
	}

	doc := Document{
		ID:           id,
		RootID:       m.cfg.ID,
		DisplayName:  name,
		MimeType:     MimeTypeFor(name, info.IsDir()),
		LastModified: info.ModTime(),
		Flags:        documentFlagsFor(info.IsDir()),
	}

	if !info.IsDir() {
		doc.Size = info.Size()
	}

	return doc
}

/*
hide keeps the file at abs, and its temporary sibling, out of the namespace
when abs lies below the root.
*/
func (m *mount) hide(abs string) {
	rel, err := filepath.Rel(m.base, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}

	rel = filepath.ToSlash(rel)
	m.private = append(m.private, rel, rel+".tmp")
}

// isPrivate reports whether rel is, or lies below, a hidden path.
func (m *mount) isPrivate(rel string) bool {
	for _, hidden := range m.private {
		if rel == hidden || strings.HasPrefix(rel, hidden+"/") {
			return true
		}
	}
	return false
}

/*
walk visits every regular file and directory below the root, skipping links,
private paths and the root itself. rel is the slash path relative to the root.
*/
func (m *mount) walk(fn func(rel string, info os.FileInfo) error) error {
	return afero.Walk(m.fs, m.name(""), func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel := strings.TrimPrefix(filepath.ToSlash(name), "/")

		if rel == "" {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		if m.isPrivate(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		return fn(rel, info)
	})
}

func (m *mount) usage() (int64, error) {
	var used int64

	err := m.walk(func(rel string, info os.FileInfo) error {
		if info.Mode().IsRegular() {
			used += info.Size()
		}
		return nil
	})

	return used, err
}
