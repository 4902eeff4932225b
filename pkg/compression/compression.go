// Package compression decodes compressed input documents. The algorithm is
// picked from the file extension or given explicitly; decompression streams
// so an input never has to exist twice in memory.
package compression

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/tabular/pkg/errors"
)

// Algorithm identifies a supported compression codec.
type Algorithm string

const (
	// None passes input through untouched.
	None Algorithm = "none"
	// Gzip decodes RFC 1952 streams.
	Gzip Algorithm = "gzip"
	// Zstd decodes Zstandard streams.
	Zstd Algorithm = "zstd"
	// LZ4 decodes LZ4 frame streams.
	LZ4 Algorithm = "lz4"
	// S2 decodes S2 streams (Snappy-compatible superset).
	S2 Algorithm = "s2"
	// Snappy decodes Snappy framed streams.
	Snappy Algorithm = "snappy"
)

// Detect picks the algorithm from a file name's extension. Unrecognized
// extensions mean uncompressed input.
func Detect(path string) Algorithm {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	case ".s2":
		return S2
	case ".sz", ".snappy":
		return Snappy
	default:
		return None
	}
}

// Parse resolves an algorithm name from configuration. The empty string
// and "auto" defer to extension detection by returning None with ok=false.
func Parse(name string) (Algorithm, bool) {
	switch strings.ToLower(name) {
	case string(Gzip):
		return Gzip, true
	case string(Zstd):
		return Zstd, true
	case string(LZ4):
		return LZ4, true
	case string(S2):
		return S2, true
	case string(Snappy):
		return Snappy, true
	case string(None):
		return None, true
	default:
		return None, false
	}
}

// NewReader wraps r with the decoder for the given algorithm.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open gzip stream")
		}
		return gr, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open zstd stream")
		}
		return &zstdCloser{zr}, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression algorithm %q", alg)
}

// ReadFile reads a whole input file, decompressing per the extension.
func ReadFile(path string) ([]byte, error) {
	return ReadFileAs(path, Detect(path))
}

// ReadFileAs reads a whole input file with an explicit algorithm.
func ReadFileAs(path string, alg Algorithm) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open input file")
	}
	defer f.Close()

	r, err := NewReader(f, alg)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read input file")
	}
	return data, nil
}

// zstd's decoder exposes Close without an error return.
type zstdCloser struct {
	*zstd.Decoder
}

func (z *zstdCloser) Close() error {
	z.Decoder.Close()
	return nil
}
