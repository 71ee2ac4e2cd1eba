package main

import (
	"io"
	"os"
	"time"

	"github.com/alnah/go-topdf/internal/config"
)

// Environment holds injectable dependencies for testability.
// Includes I/O, time, environment lookup, and base configuration.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Config *config.Config // used when --config is not given
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
		Config: config.DefaultConfig(),
	}
}
