package loader

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compression is the whole-document compression applied to a source.
type Compression int

const (
	None Compression = iota
	Zlib
	Gzip
	Zstd
)

var compressionNames = map[Compression]string{
	None: "none",
	Zlib: "zlib",
	Gzip: "gzip",
	Zstd: "zstd",
}

var compressionExts = map[Compression]string{
	Zlib: ".zlib",
	Gzip: ".gz",
	Zstd: ".zst",
}

func (c Compression) String() string {
	if n, ok := compressionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("compression(%d)", int(c))
}

// Ext is the file extension appended to compressed documents.
func (c Compression) Ext() string { return compressionExts[c] }

// CompressionFromName parses a configured name. The empty string is None.
func CompressionFromName(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return None, nil
	case "zlib":
		return Zlib, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	}
	return None, fmt.Errorf("unknown compression %q", name)
}

// CompressionForPath guesses the compression from a file extension.
func CompressionForPath(path string) Compression {
	for c, ext := range compressionExts {
		if strings.HasSuffix(path, ext) {
			return c
		}
	}
	return None
}

func decompress(c Compression, data []byte) ([]byte, error) {
	var r io.ReadCloser
	var err error
	switch c {
	case None:
		return data, nil
	case Zlib:
		r, err = zlib.NewReader(bytes.NewReader(data))
	case Gzip:
		r, err = gzip.NewReader(bytes.NewReader(data))
	case Zstd:
		var d *zstd.Decoder
		d, err = zstd.NewReader(bytes.NewReader(data))
		if err == nil {
			r = d.IOReadCloser()
		}
	default:
		return nil, fmt.Errorf("unknown %s", c)
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func compress(c Compression, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch c {
	case None:
		return data, nil
	case Zlib:
		w = zlib.NewWriter(&buf)
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Zstd:
		w, err = zstd.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unknown %s", c)
	}
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
