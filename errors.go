package topdf

import (
	"errors"
	"fmt"

	"github.com/alnah/go-topdf/internal/adapter"
	"github.com/alnah/go-topdf/internal/fontres"
	"github.com/alnah/go-topdf/internal/format"
	"github.com/alnah/go-topdf/internal/render"
)

// Sentinel errors. Every typed error below matches one of them with
// errors.Is.
var (
	ErrUnsupportedFormat = format.ErrUnsupported
	ErrParse             = adapter.ErrParse
	ErrEmptyDocument     = adapter.ErrEmptyDocument
	ErrFontResolution    = fontres.ErrResolution
	ErrRender            = render.ErrRender
	ErrIO                = errors.New("I/O error")
	ErrCancelled         = errors.New("cancelled before start")
	ErrInternal          = errors.New("internal error")

	// Settings validation errors.
	ErrInvalidPageSize        = errors.New("invalid page size")
	ErrInvalidOrientation     = errors.New("invalid orientation")
	ErrInvalidMargin          = errors.New("invalid margin")
	ErrInvalidCollisionPolicy = errors.New("invalid collision policy")
)

// Typed errors reported in a job's failure reason.
type (
	// UnsupportedError reports a file whose format could not be detected.
	UnsupportedError = format.UnsupportedError
	// ParseError reports malformed input of a known format.
	ParseError = adapter.ParseError
	// FontResolutionError reports a missing face for a script. It is a
	// warning: the job still succeeds.
	FontResolutionError = fontres.ResolutionError
	// RenderError reports a failure of the PDF writer.
	RenderError = render.Error
)

// IOError reports a failed read of a source or write of an output.
type IOError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrIO) match.
func (e *IOError) Is(target error) bool { return target == ErrIO }
