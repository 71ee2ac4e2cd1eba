package topdf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alnah/go-topdf/internal/format"
)

// Page size constants.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.25
	MaxMargin     = 3.0
	DefaultMargin = 0.5
)

// PageSettings configures PDF page dimensions.
type PageSettings struct {
	Size        string  // "letter", "a4", "legal"
	Orientation string  // "portrait", "landscape"
	Margin      float64 // inches, applied to all sides
	PageNumbers bool    // "n / N" footer
}

// DefaultPageSettings returns page settings with default values.
func DefaultPageSettings() PageSettings {
	return PageSettings{
		Size:        PageSizeA4,
		Orientation: OrientationPortrait,
		Margin:      DefaultMargin,
	}
}

// Validate checks that page settings are valid. Comparison is
// case-insensitive.
func (p PageSettings) Validate() error {
	if !isValidPageSize(p.Size) {
		return fmt.Errorf("%w: %q", ErrInvalidPageSize, p.Size)
	}
	if !isValidOrientation(p.Orientation) {
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, p.Orientation)
	}
	if p.Margin < MinMargin || p.Margin > MaxMargin {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, p.Margin, MinMargin, MaxMargin)
	}
	return nil
}

func isValidPageSize(size string) bool {
	switch strings.ToLower(size) {
	case PageSizeLetter, PageSizeA4, PageSizeLegal:
		return true
	}
	return false
}

func isValidOrientation(orientation string) bool {
	switch strings.ToLower(orientation) {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// CollisionPolicy decides what happens when an output path is already
// taken, either on disk or by an earlier job of the same batch.
type CollisionPolicy string

// Collision policies. Under both, two jobs of one batch never share an
// output: the later one is suffixed.
const (
	// CollisionOverwrite replaces files already on disk.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionSuffix keeps files already on disk and appends -2, -3, ...
	// before the extension instead.
	CollisionSuffix CollisionPolicy = "suffix"
)

// ParseCollisionPolicy parses a policy name (case-insensitive). Empty
// means CollisionOverwrite.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(s)); p {
	case "":
		return CollisionOverwrite, nil
	case CollisionSuffix, CollisionOverwrite:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (must be suffix or overwrite)", ErrInvalidCollisionPolicy, s)
}

// Format is the detected kind of a source file.
type Format = format.Kind

// Status is the lifecycle state of a job. It only moves forward:
// Pending, Running, then Succeeded or Failed. A job cancelled before it
// starts goes straight from Pending to Failed.
type Status int

// Job statuses.
const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Job is one source file of a batch.
type Job struct {
	ID       string
	Source   string
	Output   string
	Format   Format
	Status   Status
	Err      error   // failure reason when Status is StatusFailed
	Warnings []error // non-fatal problems, e.g. font substitution
	Started  time.Time
	Finished time.Time
}

// Duration is the time spent running, zero until the job finishes.
func (j Job) Duration() time.Duration {
	if j.Started.IsZero() || j.Finished.IsZero() {
		return 0
	}
	return j.Finished.Sub(j.Started)
}

// Event is a status change of one job.
type Event struct {
	JobID   string
	Source  string
	Output  string
	Status  Status
	Err     error
	Message string
	Time    time.Time
}

// Summary counts jobs by outcome.
type Summary struct {
	Total     int
	Pending   int
	Running   int
	Succeeded int
	Failed    int
	Cancelled int // subset of Failed
	Warnings  int // jobs with at least one warning
}

func summarize(jobs []Job) Summary {
	s := Summary{Total: len(jobs)}
	for _, j := range jobs {
		switch j.Status {
		case StatusPending:
			s.Pending++
		case StatusRunning:
			s.Running++
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
			if errors.Is(j.Err, ErrCancelled) {
				s.Cancelled++
			}
		}
		if len(j.Warnings) > 0 {
			s.Warnings++
		}
	}
	return s
}
