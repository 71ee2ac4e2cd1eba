package fontres

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font/sfnt"

	"github.com/alnah/go-topdf/internal/document"
)

// Coverage probes. A face covers a script when every probe rune maps to a
// glyph.
const (
	latinProbe = "AaZz09"
	cjkProbe   = "的一是中国"
)

var errNotTrueType = errors.New("not a TrueType outline font")

// Face is one font file on disk. Its bytes are read on first use and then
// shared read-only.
type Face struct {
	Path      string
	Family    string
	Subfamily string
	Scripts   document.Script

	once sync.Once
	data []byte
	err  error
}

// Bytes returns the file contents, reading them once.
func (f *Face) Bytes() ([]byte, error) {
	f.once.Do(func() {
		f.data, f.err = os.ReadFile(f.Path) // #nosec G304 -- path comes from the font scan
	})
	return f.data, f.err
}

// IsRegular reports whether the face is the upright, normal-weight style.
func (f *Face) IsRegular() bool {
	switch strings.ToLower(f.Subfamily) {
	case "", "regular", "book", "normal", "roman", "medium":
		return true
	}
	return false
}

// IsBold reports whether the face is the upright bold style.
func (f *Face) IsBold() bool {
	return strings.EqualFold(f.Subfamily, "bold")
}

func (f *Face) String() string {
	return fmt.Sprintf("%s %s (%s) %s", f.Family, f.Subfamily, f.Scripts, f.Path)
}

// loadFace parses the tables needed for naming and coverage without
// reading the whole file.
func loadFace(path string) (*Face, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from a directory walk
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var magic [4]byte
	if _, err := io.ReadFull(file, magic[:]); err != nil {
		return nil, err
	}
	// OpenType with CFF outlines; the PDF writer embeds glyf outlines only.
	if bytes.Equal(magic[:], []byte("OTTO")) {
		return nil, errNotTrueType
	}

	font, err := sfnt.ParseReaderAt(file)
	if err != nil {
		return nil, err
	}
	return describe(path, font)
}

// parseFace is loadFace over bytes already in memory.
func parseFace(path string, data []byte) (*Face, error) {
	if bytes.HasPrefix(data, []byte("OTTO")) {
		return nil, errNotTrueType
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, err
	}
	face, err := describe(path, font)
	if err != nil {
		return nil, err
	}
	face.once.Do(func() { face.data = data })
	return face, nil
}

func describe(path string, font *sfnt.Font) (*Face, error) {
	var buf sfnt.Buffer

	family, err := font.Name(&buf, sfnt.NameIDFamily)
	if err != nil || family == "" {
		return nil, fmt.Errorf("no family name: %w", err)
	}
	sub, _ := font.Name(&buf, sfnt.NameIDSubfamily)

	face := &Face{Path: path, Family: family, Subfamily: sub}
	if covers(font, &buf, latinProbe) {
		face.Scripts |= document.Latin
	}
	if covers(font, &buf, cjkProbe) {
		face.Scripts |= document.CJK
	}
	if face.Scripts == 0 {
		return nil, errors.New("covers no supported script")
	}
	return face, nil
}

func covers(font *sfnt.Font, buf *sfnt.Buffer, probe string) bool {
	for _, r := range probe {
		idx, err := font.GlyphIndex(buf, r)
		if err != nil || idx == 0 {
			return false
		}
	}
	return true
}
