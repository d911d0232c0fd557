package txt

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

const (
	DefaultReplacementThreshold = 0.01
)

var DefaultEncodings = []string{"utf-8", "gb18030", "big5"}

var (
	ErrUnknownEncoding = errors.New("unknown text encoding")
	ErrUndecodable     = errors.New("text could not be decoded")
)

// Decoded is the outcome of running bytes through the candidate encodings.
type Decoded struct {
	Text             string
	Encoding         string
	ReplacementRatio float64
}

// Decode tries each encoding in order and returns the first decoding whose
// share of U+FFFD replacement characters is below threshold. When none
// qualifies, the candidate with the lowest share wins, earlier encodings
// winning ties. A UTF-16 byte order mark overrides the candidate list.
func Decode(data []byte, encodings []string, threshold float64) (*Decoded, error) {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}
	if threshold <= 0 {
		threshold = DefaultReplacementThreshold
	}
	if len(data) == 0 {
		return &Decoded{Encoding: encodings[0]}, nil
	}

	if enc, name := sniffUTF16(data); enc != nil {
		text, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.Wrap(ErrUndecodable, err.Error())
		}
		s := string(text)
		return &Decoded{Text: s, Encoding: name, ReplacementRatio: replacementRatio(s)}, nil
	}

	var best *Decoded
	for _, name := range encodings {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, errors.Wrapf(ErrUnknownEncoding, "%q", name)
		}
		canonical, _ := htmlindex.Name(enc)
		if canonical == "" {
			canonical = strings.ToLower(name)
		}

		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		text := strings.TrimPrefix(string(out), "\ufeff")
		candidate := &Decoded{Text: text, Encoding: canonical, ReplacementRatio: replacementRatio(text)}
		if candidate.ReplacementRatio < threshold {
			return candidate, nil
		}
		if best == nil || candidate.ReplacementRatio < best.ReplacementRatio {
			best = candidate
		}
	}

	if best == nil {
		return nil, errors.WithStack(ErrUndecodable)
	}
	return best, nil
}

func replacementRatio(s string) float64 {
	total := utf8.RuneCountInString(s)
	if total == 0 {
		return 0
	}
	bad := strings.Count(s, string(utf8.RuneError))
	return float64(bad) / float64(total)
}

func sniffUTF16(data []byte) (encoding.Encoding, string) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), "utf-16le"
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), "utf-16be"
	}
	return nil, ""
}
