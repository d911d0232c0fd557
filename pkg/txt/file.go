package txt

import (
	"bytes"
	"compress/gzip"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/ulikunitz/xz"
)

const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionXZ   = "xz"
)

var (
	ErrTooLarge = errors.New("decompressed text exceeds size limit")
	// ErrCorrupt means a compressed stream could not be inflated.
	ErrCorrupt = errors.New("corrupt compressed text")
)

type Options struct {
	Encodings            []string
	ReplacementThreshold float64
	// MaxSize caps the decompressed size in bytes. Zero means no cap.
	MaxSize int64
}

type Result struct {
	Blocks      []content.Block
	Encoding    string
	Compression string
}

// Compression reports how data is compressed, looking at the file name
// first and falling back to sniffing the bytes.
func Compression(name string, data []byte) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".xz"):
		return CompressionXZ
	}
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/gzip"):
		return CompressionGzip
	case mt.Is("application/x-xz"):
		return CompressionXZ
	}
	return CompressionNone
}

// Decompress inflates gzip or xz text. Uncompressed data is returned as is.
func Decompress(name string, data []byte, maxSize int64) ([]byte, string, error) {
	kind := Compression(name, data)

	var r io.Reader
	switch kind {
	case CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, kind, errors.Wrapf(ErrCorrupt, "gzip: %s", err.Error())
		}
		defer gz.Close()
		r = gz
	case CompressionXZ:
		x, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, kind, errors.Wrapf(ErrCorrupt, "xz: %s", err.Error())
		}
		r = x
	default:
		if maxSize > 0 && int64(len(data)) > maxSize {
			return nil, kind, errors.WithStack(ErrTooLarge)
		}
		return data, kind, nil
	}

	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, kind, errors.Wrapf(ErrCorrupt, "%s: %s", kind, err.Error())
	}
	if maxSize > 0 && int64(len(out)) > maxSize {
		return nil, kind, errors.WithStack(ErrTooLarge)
	}
	return out, kind, nil
}

// IngestBytes decompresses, decodes and splits a text file.
func IngestBytes(name string, data []byte, opts Options) (*Result, error) {
	raw, kind, err := Decompress(name, data, opts.MaxSize)
	if err != nil {
		return nil, err
	}
	decoded, err := Decode(raw, opts.Encodings, opts.ReplacementThreshold)
	if err != nil {
		return nil, err
	}
	return &Result{
		Blocks:      Ingest(decoded.Text),
		Encoding:    decoded.Encoding,
		Compression: kind,
	}, nil
}

// IsText reports whether name looks like a text book, compressed or not.
func IsText(name string) bool {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(strings.TrimSuffix(lower, ".gz"), ".xz")
	return path.Ext(lower) == ".txt"
}

// Title derives a display title from a text file name.
func Title(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	for _, suffix := range []string{".gz", ".xz", ".txt"} {
		if strings.HasSuffix(strings.ToLower(base), suffix) {
			base = base[:len(base)-len(suffix)]
		}
	}
	return base
}
