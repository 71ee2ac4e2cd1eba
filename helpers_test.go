package topdf

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/fontres"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConverter builds a converter that renders with the core font only,
// so output text can be extracted and does not depend on host fonts.
func newTestConverter(t *testing.T, opts ...Option) *Converter {
	t.Helper()

	base := []Option{
		WithLogger(quietLogger()),
		WithClock(fixedNow),
	}
	conv, err := NewConverter(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	conv.fonts = resolverFunc(func(document.Script) (fontres.ProfileSet, []error) {
		return fontres.CoreSet(), nil
	})
	return conv
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const (
	reportCSV = "name,qty,city\nalice,3,Paris\nbob,5,Lyon\ncarol,8,Nice\n"
	notesMD   = "# Notes\n\nSome *emphasis* and `code`.\n\n- first\n- second\n"
)

// fakePDF is a minimal well-formed body for mocks; nothing parses it.
var fakePDF = []byte("%PDF-1.4\n%%EOF\n")

// renderFunc adapts a function to documentRenderer.
type renderFunc func(doc *document.Document, fonts fontres.ProfileSet) ([]byte, error)

func (f renderFunc) Render(doc *document.Document, fonts fontres.ProfileSet) ([]byte, []error, error) {
	b, err := f(doc, fonts)
	return b, nil, err
}

// resolverFunc adapts a function to fontResolver.
type resolverFunc func(scripts document.Script) (fontres.ProfileSet, []error)

func (f resolverFunc) ResolveAll(scripts document.Script) (fontres.ProfileSet, []error) {
	return f(scripts)
}

