package nfsmount

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tagnav/api"
	"github.com/agentic-research/tagnav/internal/selection"
	"github.com/agentic-research/tagnav/internal/tagtree"
)

const testDoc = `{
  "modelB": {"t6": ["b6a.png", "b6b.png"]},
  "modelA": {"t12": "a12.png", "t0": "a0.png", "t99": "stray.png"},
  "obs/radar": {"t0": []}
}`

func newTestFS(t *testing.T) *TreeFS {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(testDoc), &v))
	tree, err := tagtree.FromValue(v, 2)
	require.NoError(t, err)

	keys := selection.KeyLists{
		{"modelA", "modelB", "obs/radar"},
		{"t0", "t6", "t12"},
	}
	page := &api.Page{Version: "1", Title: "Forecasts", Dimensions: []api.Dimension{{Name: "Model"}, {Name: "Lead time"}}}
	fs, err := NewTreeFS(tree, keys, page)
	require.NoError(t, err)
	return fs
}

func names(infos []os.FileInfo) []string {
	out := make([]string, len(infos))
	for i, fi := range infos {
		out[i] = fi.Name()
	}
	return out
}

func TestStat(t *testing.T) {
	fs := newTestFS(t)

	tests := []struct {
		path  string
		name  string
		isDir bool
		size  int64
	}{
		{"/", "/", true, 0},
		{"/modelA", "modelA", true, 0},
		{"modelA/t0", "t0", false, int64(len("a0.png\n"))},
		{"/modelB/t6", "t6", false, int64(len("b6a.png\nb6b.png\n"))},
		{"/obs%2Fradar/t0", "t0", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			info, err := fs.Stat(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.name, info.Name())
			assert.Equal(t, tt.isDir, info.IsDir())
			if !tt.isDir {
				assert.Equal(t, tt.size, info.Size())
			}
		})
	}
}

func TestStatNotFound(t *testing.T) {
	fs := newTestFS(t)
	for _, p := range []string{"/modelC", "/modelA/t6", "/modelA/t0/deeper"} {
		_, err := fs.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}

func TestReadDirFollowsKeyOrder(t *testing.T) {
	fs := newTestFS(t)

	root, err := fs.ReadDir("/")
	require.NoError(t, err)
	assert.Equal(t, []string{PageFile, "modelA", "modelB", "obs%2Fradar"}, names(root))

	sub, err := fs.ReadDir("/modelA")
	require.NoError(t, err)
	assert.Equal(t, []string{"t0", "t12", "t99"}, names(sub), "unknown keys are listed last")

	_, err = fs.ReadDir("/modelA/t0")
	assert.Error(t, err)
}

func TestReadLeaf(t *testing.T) {
	fs := newTestFS(t)

	data, err := util.ReadFile(fs, "/modelB/t6")
	require.NoError(t, err)
	assert.Equal(t, "b6a.png\nb6b.png\n", string(data))

	data, err = util.ReadFile(fs, "/obs%2Fradar/t0")
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = fs.Open("/modelA")
	assert.Error(t, err, "directories cannot be opened as files")
}

func TestPageFile(t *testing.T) {
	fs := newTestFS(t)

	data, err := util.ReadFile(fs, "/"+PageFile)
	require.NoError(t, err)
	var page api.Page
	require.NoError(t, json.Unmarshal(data, &page))
	assert.Equal(t, "Forecasts", page.Title)

	info, err := fs.Stat(PageFile)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size())
}

func TestReadAtAndSeek(t *testing.T) {
	fs := newTestFS(t)
	f, err := fs.Open("/modelB/t6")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, 3)
	n, err := f.ReadAt(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, "b6b", string(buf[:n]))

	pos, err := f.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(12), pos)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png\n", string(rest))
}

func TestReadOnly(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Create("/new")
	assert.Equal(t, errReadOnly, err)
	_, err = fs.OpenFile("/modelA/t0", os.O_RDWR, 0)
	assert.Equal(t, errReadOnly, err)
	assert.Equal(t, errReadOnly, fs.MkdirAll("/x", 0o755))
	assert.Equal(t, errReadOnly, fs.Remove("/modelA/t0"))
	assert.Equal(t, errReadOnly, fs.Rename("/modelA", "/modelZ"))

	caps := fs.Capabilities()
	assert.NotZero(t, caps&billy.ReadCapability)
	assert.Zero(t, caps&billy.WriteCapability)
}

func TestChroot(t *testing.T) {
	fs := newTestFS(t)
	sub, err := fs.Chroot("/modelA")
	require.NoError(t, err)

	data, err := util.ReadFile(sub, "t12")
	require.NoError(t, err)
	assert.Equal(t, "a12.png\n", string(data))
}

func TestMountArgs(t *testing.T) {
	args, err := mountArgs("linux", 2049, "/mnt/wx")
	require.NoError(t, err)
	assert.Equal(t, []string{"mount", "-t", "nfs", "-o",
		"port=2049,mountport=2049,vers=3,tcp,local_lock=all,nolock,ro",
		"localhost:/", "/mnt/wx"}, args)

	args, err = mountArgs("darwin", 1, "/Volumes/wx")
	require.NoError(t, err)
	assert.Contains(t, args[4], "rdonly")

	_, err = mountArgs("plan9", 1, "/n/wx")
	assert.Error(t, err)
}

func TestNFSServerStarts(t *testing.T) {
	srv, err := NewServer(newTestFS(t), nil)
	require.NoError(t, err)

	assert.Positive(t, srv.Port())
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()))
	require.NoError(t, err)
	_ = conn.Close()

	require.NoError(t, srv.Close())
}
