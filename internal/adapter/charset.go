package adapter

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/alnah/go-topdf/internal/document"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText converts raw bytes of unknown encoding into UTF-8 with
// normalised line endings. A byte-order mark wins; valid UTF-8 is kept as
// is; anything else goes through charset detection.
func decodeText(data []byte) string {
	var s string
	switch {
	case bytes.HasPrefix(data, bomUTF8), bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			s = strings.ToValidUTF8(string(data), "\uFFFD")
		} else {
			s = string(out)
		}
	case utf8.Valid(data):
		s = string(data)
	default:
		s = detectAndDecode(data)
	}
	return cleanText(s)
}

func detectAndDecode(data []byte) string {
	results, err := chardet.NewTextDetector().DetectAll(data)
	if err != nil || len(results) == 0 {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}

	best, bestScore := "", -1<<31
	for _, r := range results {
		enc := lookupEncoding(r.Charset)
		if enc == nil {
			continue
		}
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		text := string(out)
		if score := scoreDecoded(text, r.Confidence); score > bestScore {
			best, bestScore = text, score
		}
	}
	if best == "" {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return best
}

// lookupEncoding resolves chardet's charset names, which are close to but
// not always identical with WHATWG labels ("GB-18030" vs "gb18030").
func lookupEncoding(name string) encoding.Encoding {
	if enc, err := htmlindex.Get(name); err == nil {
		return enc
	}
	if enc, err := htmlindex.Get(strings.ReplaceAll(name, "-", "")); err == nil {
		return enc
	}
	return nil
}

// scoreDecoded favours decodings that produce no replacement or control
// characters. Halfwidth katakana is what double-byte Chinese text turns
// into under a Shift_JIS misreading, so it counts against.
func scoreDecoded(text string, confidence int) int {
	score := confidence
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			score -= 10
		case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
			score -= 5
		case r >= 0xFF61 && r <= 0xFF9F:
			score--
		case document.IsCJK(r), r >= 'A' && r <= 'z':
			score++
		}
	}
	return score
}

// cleanText normalises line endings and drops control characters other
// than tab and newline.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7F || r == '\uFEFF' {
			return -1
		}
		return r
	}, s)
}
