package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// DefaultMaxEntrySize caps how much a single zip entry may inflate to.
const DefaultMaxEntrySize int64 = 256 * 1024 * 1024

var errEntryNotFound = errors.New("zip entry not found")

// archive is a read-only view over the zip container with exact and
// case-insensitive name lookups.
type archive struct {
	files        map[string]*zip.File
	folded       map[string]*zip.File
	maxEntrySize int64
}

func openArchive(data []byte, maxEntrySize int64) (*archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(ErrMalformedArchive, err.Error())
	}
	if maxEntrySize <= 0 {
		maxEntrySize = DefaultMaxEntrySize
	}

	a := &archive{
		files:        make(map[string]*zip.File, len(zr.File)),
		folded:       make(map[string]*zip.File, len(zr.File)),
		maxEntrySize: maxEntrySize,
	}
	for _, f := range zr.File {
		a.files[f.Name] = f
		lower := strings.ToLower(f.Name)
		if _, ok := a.folded[lower]; !ok {
			a.folded[lower] = f
		}
	}
	return a, nil
}

// exact looks a name up without any normalization.
func (a *archive) exact(name string) *zip.File {
	return a.files[name]
}

// find tries an exact match first and falls back to a case-insensitive one.
// Resource references in real-world books often disagree with the archive on
// case.
func (a *archive) find(name string) *zip.File {
	if f, ok := a.files[name]; ok {
		return f
	}
	return a.folded[strings.ToLower(name)]
}

func (a *archive) read(name string) ([]byte, error) {
	f := a.find(name)
	if f == nil {
		return nil, errors.Wrap(errEntryNotFound, name)
	}
	return a.readFile(f)
}

func (a *archive) readFile(f *zip.File) ([]byte, error) {
	if !isSafePath(f.Name) {
		return nil, errors.Errorf("unsafe zip entry path: %s", f.Name)
	}
	if f.UncompressedSize64 > uint64(a.maxEntrySize) {
		return nil, errors.Errorf("zip entry %s too large: %d bytes", f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open zip entry %s", f.Name)
	}
	defer rc.Close()

	// Declared sizes can lie, so read one byte past the limit to notice.
	data, err := io.ReadAll(io.LimitReader(rc, a.maxEntrySize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read zip entry %s", f.Name)
	}
	if int64(len(data)) > a.maxEntrySize {
		return nil, errors.Errorf("zip entry %s exceeds size limit", f.Name)
	}
	return stripBOM(data), nil
}

// resolvePath resolves href against the directory of base, both being
// archive-internal paths. The fragment and query are dropped. An empty string
// means the reference escapes the archive or is absolute.
func resolvePath(base, href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if href == "" || strings.HasPrefix(href, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	resolved := path.Clean(path.Join(path.Dir(base), href))
	if !isSafePath(resolved) {
		return ""
	}
	return resolved
}

func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// isExternal reports whether ref points outside the archive or is already
// self-contained.
func isExternal(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	if strings.HasPrefix(lower, "//") {
		return true
	}
	return hasURIScheme(lower)
}

// hasURIScheme reports whether s starts with an RFC 3986 scheme such as
// "https:" or "data:". Single letters are treated as drive names, not schemes.
func hasURIScheme(s string) bool {
	if s == "" {
		return false
	}
	if !isASCIILetter(s[0]) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			return i > 1
		}
		if !(c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') || isASCIILetter(c)) {
			return false
		}
	}
	return false
}

func isASCIILetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
