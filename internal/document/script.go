package document

import "unicode"

// Script is a bit set of writing systems that need distinct font coverage.
type Script uint8

// Scripts the font resolver distinguishes.
const (
	Latin Script = 1 << iota
	CJK
)

// AllScripts lists every script in resolution order.
var AllScripts = []Script{Latin, CJK}

func (s Script) String() string {
	switch s {
	case Latin:
		return "latin"
	case CJK:
		return "cjk"
	case Latin | CJK:
		return "latin+cjk"
	case 0:
		return "none"
	}
	return "unknown"
}

// Has reports whether all bits in o are set.
func (s Script) Has(o Script) bool { return s&o == o }

// IsCJK reports whether r needs a CJK-capable face.
func IsCJK(r rune) bool {
	switch {
	case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Bopomofo):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // halfwidth and fullwidth forms
		return true
	}
	return false
}

// ScriptOf classifies a single rune. Whitespace and controls count as Latin.
func ScriptOf(r rune) Script {
	if IsCJK(r) {
		return CJK
	}
	return Latin
}

// ScriptsOf returns the scripts used by s. Whitespace-only text needs none.
func ScriptsOf(s string) Script {
	var out Script
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		out |= ScriptOf(r)
		if out == Latin|CJK {
			break
		}
	}
	return out
}

// Scripts returns every script needed to render doc. Latin is always
// included since headers, bullets and table rules use it.
func Scripts(doc *Document) Script {
	out := Latin
	if doc == nil {
		return out
	}
	out |= ScriptsOf(doc.Title)
	for _, b := range doc.Blocks {
		switch v := b.(type) {
		case Paragraph:
			for _, r := range v.Runs {
				out |= ScriptsOf(r.Text)
			}
		case Table:
			for _, row := range v.Rows {
				for _, cell := range row {
					out |= ScriptsOf(cell)
				}
			}
		case CodeBlock:
			out |= ScriptsOf(v.Text)
		}
		if out.Has(CJK) {
			return out
		}
	}
	return out
}

// Segment is a maximal substring written in one script.
type Segment struct {
	Text   string
	Script Script
}

// Segments splits s into runs of the same script. Spaces and punctuation
// stay with the preceding segment so line breaking sees whole words.
func Segments(s string) []Segment {
	var out []Segment
	start := 0
	var cur Script
	for i, r := range s {
		sc := ScriptOf(r)
		if !IsCJK(r) && (unicode.IsSpace(r) || unicode.IsPunct(r)) && cur != 0 {
			sc = cur
		}
		if cur == 0 {
			cur = sc
			continue
		}
		if sc != cur {
			out = append(out, Segment{Text: s[start:i], Script: cur})
			start = i
			cur = sc
		}
	}
	if start < len(s) {
		if cur == 0 {
			cur = Latin
		}
		out = append(out, Segment{Text: s[start:], Script: cur})
	}
	return out
}
