package middleware

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/Roblox/rojo/internal/rojoerr"
	"github.com/Roblox/rojo/internal/vfs"
)

// fakeFS is an in-memory FileSystem used by middleware tests: a plain
// map from path to either file contents or a directory marker, with no
// watcher, no debounce, no disk I/O.
type fakeFS struct {
	files map[string][]byte
	dirs  map[string]bool
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: map[string][]byte{}, dirs: map[string]bool{}}
}

func (f *fakeFS) putFile(path string, contents string) *fakeFS {
	f.files[path] = []byte(contents)
	f.ensureDirs(filepath.Dir(path))
	return f
}

func (f *fakeFS) putDir(path string) *fakeFS {
	f.dirs[path] = true
	f.ensureDirs(filepath.Dir(path))
	return f
}

func (f *fakeFS) ensureDirs(path string) {
	for path != "" && path != "." && path != string(filepath.Separator) {
		f.dirs[path] = true
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}
}

func (f *fakeFS) Read(path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, rojoerr.IO("not found: " + path)
	}
	return data, nil
}

func (f *fakeFS) Metadata(path string) (vfs.EntryKind, error) {
	if f.dirs[path] {
		return vfs.KindDir, nil
	}
	if _, ok := f.files[path]; ok {
		return vfs.KindFile, nil
	}
	return 0, rojoerr.IOWrap("not found: "+path, os.ErrNotExist)
}

func (f *fakeFS) Children(path string) ([]string, error) {
	if !f.dirs[path] {
		return nil, rojoerr.IO("not a directory: " + path)
	}
	seen := map[string]struct{}{}
	for p := range f.files {
		if filepath.Dir(p) == path {
			seen[filepath.Base(p)] = struct{}{}
		}
	}
	for p := range f.dirs {
		if p != path && filepath.Dir(p) == path {
			seen[filepath.Base(p)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
