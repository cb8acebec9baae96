// Package nfsmount projects a tag tree as a read-only filesystem and serves
// it over NFS. Each branch of the tree is a directory whose entries follow
// the dimension's key-list order; each leaf is a file listing its payload
// references, one per line.
package nfsmount

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/tagnav/api"
	"github.com/agentic-research/tagnav/internal/selection"
	"github.com/agentic-research/tagnav/internal/tagtree"
)

// PageFile is the virtual file at the root holding the page description.
const PageFile = "_page.json"

var errReadOnly = errors.New("read-only filesystem")

// TreeFS adapts a tag tree to billy.Filesystem for go-nfs.
type TreeFS struct {
	tree      *tagtree.Tree
	keys      selection.KeyLists
	pageJSON  []byte
	mountTime time.Time
}

// NewTreeFS builds the projection. keys orders directory listings; tree keys
// the key lists do not know are listed last, sorted.
func NewTreeFS(tree *tagtree.Tree, keys selection.KeyLists, page *api.Page) (*TreeFS, error) {
	pj, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding page: %w", err)
	}
	return &TreeFS{
		tree:      tree,
		keys:      keys,
		pageJSON:  append(pj, '\n'),
		mountTime: time.Now(),
	}, nil
}

func (fs *TreeFS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *TreeFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *TreeFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}
	if filename == "/"+PageFile {
		return &bytesFile{name: PageFile, data: fs.pageJSON}, nil
	}

	n, err := fs.lookup(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	if !n.IsLeaf() {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errors.New("is a directory")}
	}
	return &bytesFile{name: filename, data: leafContent(n)}, nil
}

func (fs *TreeFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *TreeFS) Rename(oldpath, newpath string) error { return errReadOnly }
func (fs *TreeFS) Remove(filename string) error         { return errReadOnly }

func (fs *TreeFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

func (fs *TreeFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

func (fs *TreeFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)
	n, err := fs.lookup(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: err}
	}
	if n.IsLeaf() {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: errors.New("not a directory")}
	}

	depth := 0
	if path != "/" {
		depth = strings.Count(path, "/")
	}
	var canonical []string
	if depth < len(fs.keys) {
		canonical = fs.keys[depth]
	}
	ordered, dropped := selection.Reorder(n.Keys(), canonical)

	infos := make([]os.FileInfo, 0, len(ordered)+len(dropped)+1)
	if path == "/" {
		infos = append(infos, fs.pageInfo())
	}
	for _, k := range append(ordered, dropped...) {
		child, _ := n.Child(k)
		infos = append(infos, fs.nodeInfo(encodeName(k), child))
	}
	return infos, nil
}

func (fs *TreeFS) MkdirAll(filename string, perm os.FileMode) error { return errReadOnly }

func (fs *TreeFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)
	if filename == "/"+PageFile {
		return fs.pageInfo(), nil
	}
	n, err := fs.lookup(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: err}
	}
	name := "/"
	if filename != "/" {
		name = filepath.Base(filename)
	}
	return fs.nodeInfo(name, n), nil
}

func (fs *TreeFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *TreeFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

func (fs *TreeFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *TreeFS) Root() string { return "/" }

func (fs *TreeFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// lookup walks path down the tree, one encoded key per segment.
func (fs *TreeFS) lookup(path string) (*tagtree.Node, error) {
	n := fs.tree.Root
	if path == "/" {
		return n, nil
	}
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if n.IsLeaf() {
			return nil, os.ErrNotExist
		}
		child, ok := n.Child(decodeName(seg))
		if !ok {
			return nil, os.ErrNotExist
		}
		n = child
	}
	return n, nil
}

func (fs *TreeFS) pageInfo() os.FileInfo {
	return &staticFileInfo{
		name:    PageFile,
		size:    int64(len(fs.pageJSON)),
		mode:    0o444,
		modTime: fs.mountTime,
	}
}

func (fs *TreeFS) nodeInfo(name string, n *tagtree.Node) os.FileInfo {
	if n.IsLeaf() {
		return &staticFileInfo{
			name:    name,
			size:    int64(len(leafContent(n))),
			mode:    0o444,
			modTime: fs.mountTime,
		}
	}
	return &staticFileInfo{name: name, mode: os.ModeDir | 0o555, modTime: fs.mountTime}
}

// leafContent is the payload refs, newline terminated.
func leafContent(n *tagtree.Node) []byte {
	p := n.Payload()
	if p.Empty() {
		return nil
	}
	return []byte(strings.Join(p.Refs, "\n") + "\n")
}

func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

var nameEscaper = strings.NewReplacer("%", "%25", "/", "%2F")
var nameUnescaper = strings.NewReplacer("%2F", "/", "%25", "%")

// encodeName makes a tag value safe as a single path segment.
func encodeName(key string) string { return nameEscaper.Replace(key) }

func decodeName(seg string) string { return nameUnescaper.Replace(seg) }

type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() any           { return nil }

var (
	_ billy.Filesystem = (*TreeFS)(nil)
	_ billy.Capable    = (*TreeFS)(nil)
	_ billy.File       = (*bytesFile)(nil)
)
