// Package yamlutil wraps YAML parsing to isolate the external dependency.
// Config files are decoded strictly; YAML documents being converted are
// only syntax-checked.
package yamlutil

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/token"
)

// MaxInputSize limits config input to prevent memory exhaustion (default 1MB).
var MaxInputSize = 1 << 20

var (
	ErrNilData        = errors.New("yamlutil: nil or empty data")
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
)

// SyntaxError locates a YAML syntax problem. Line and Column are 1-based
// and zero when the parser did not report a position.
type SyntaxError struct {
	Line   int
	Column int
	Err    error
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("yamlutil: line %d column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("yamlutil: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// tokenError is implemented by go-yaml's positioned errors.
type tokenError interface {
	GetToken() *token.Token
}

func validateInput(data []byte, v any) error {
	if len(data) == 0 {
		return ErrNilData
	}
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}
	if v == nil {
		return ErrNilDestination
	}
	return nil
}

// UnmarshalStrict rejects unknown fields in the input.
func UnmarshalStrict(data []byte, v any) error {
	if err := validateInput(data, v); err != nil {
		return err
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// Check parses every document in a YAML stream without decoding values.
// Syntax problems are returned as *SyntaxError. Size is not limited.
func Check(data []byte) error {
	if _, err := parser.ParseBytes(data, 0); err != nil {
		se := &SyntaxError{Err: err}
		var te tokenError
		if errors.As(err, &te) {
			if tk := te.GetToken(); tk != nil && tk.Position != nil {
				se.Line = tk.Position.Line
				se.Column = tk.Position.Column
			}
		}
		return se
	}
	return nil
}
