// Package config loads and validates topdf configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/alnah/go-topdf/internal/fileutil"
	"github.com/alnah/go-topdf/internal/yamlutil"
)

// appDir is the directory name under os.UserConfigDir searched for configs.
const appDir = "go-topdf"

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits for validation.
const (
	MaxPathLength   = 4096
	MaxFamilyLength = 256
	MaxFontDirs     = 64
)

// Range limits mirrored from the conversion settings. The root package
// validates again; these checks give config-level error messages.
const (
	MinMargin     = 0.25
	MaxMargin     = 3.0
	DefaultMargin = 0.5
	MaxWorkers    = 64
)

// Environment variable names that override file values.
const (
	EnvOutput    = "TOPDF_OUTPUT"
	EnvWorkers   = "TOPDF_WORKERS"
	EnvPageSize  = "TOPDF_PAGE_SIZE"
	EnvFontDirs  = "TOPDF_FONT_DIRS"
	EnvLogFormat = "TOPDF_LOG_FORMAT"
)

var (
	pageSizes    = []string{"letter", "a4", "legal"}
	orientations = []string{"portrait", "landscape"}
	collisions   = []string{"overwrite", "suffix"}
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"text", "json"}
)

// Config holds all configuration options.
type Config struct {
	Output    OutputConfig `yaml:"output"`
	Workers   int          `yaml:"workers"`
	Page      PageConfig   `yaml:"page"`
	Fonts     FontsConfig  `yaml:"fonts"`
	Collision string       `yaml:"collision"`
	Log       LogConfig    `yaml:"log"`
}

// OutputConfig defines output options.
type OutputConfig struct {
	// Dir receives every PDF. Empty writes each PDF beside its source.
	Dir string `yaml:"dir"`
}

// PageConfig defines page layout options.
type PageConfig struct {
	Size        string  `yaml:"size"`        // letter, a4, legal
	Orientation string  `yaml:"orientation"` // portrait, landscape
	Margin      float64 `yaml:"margin"`      // inches
	PageNumbers bool    `yaml:"pageNumbers"`
}

// FontsConfig defines font discovery options.
type FontsConfig struct {
	Dirs     []string `yaml:"dirs"`     // scanned before the system directories
	Latin    []string `yaml:"latin"`    // preferred families for Latin text
	CJK      []string `yaml:"cjk"`      // preferred families for CJK text
	Fallback string   `yaml:"fallback"` // TrueType file used when nothing covers a script
}

// LogConfig defines diagnostic logging options.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Page: PageConfig{
			Size:        "a4",
			Orientation: "portrait",
			Margin:      DefaultMargin,
		},
		Collision: "overwrite",
		Log:       LogConfig{Level: "warn", Format: "text"},
	}
}

// Validate checks enum values, ranges, and field lengths.
// Empty enum fields are accepted and mean "use the default".
func (c *Config) Validate() error {
	if err := validateFieldLength("output.dir", c.Output.Dir, MaxPathLength); err != nil {
		return err
	}
	if c.Workers < 0 || c.Workers > MaxWorkers {
		return fmt.Errorf("%w: workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, c.Workers)
	}

	if err := validateEnum("page.size", c.Page.Size, pageSizes); err != nil {
		return err
	}
	if err := validateEnum("page.orientation", c.Page.Orientation, orientations); err != nil {
		return err
	}
	if c.Page.Margin != 0 && (c.Page.Margin < MinMargin || c.Page.Margin > MaxMargin) {
		return fmt.Errorf("%w: page.margin must be between %.2f and %.1f inches, got %.2f",
			ErrInvalidValue, MinMargin, MaxMargin, c.Page.Margin)
	}

	if len(c.Fonts.Dirs) > MaxFontDirs {
		return fmt.Errorf("%w: fonts.dirs has %d entries, max %d", ErrInvalidValue, len(c.Fonts.Dirs), MaxFontDirs)
	}
	for i, dir := range c.Fonts.Dirs {
		if err := validateFieldLength(fmt.Sprintf("fonts.dirs[%d]", i), dir, MaxPathLength); err != nil {
			return err
		}
	}
	for i, family := range c.Fonts.Latin {
		if err := validateFieldLength(fmt.Sprintf("fonts.latin[%d]", i), family, MaxFamilyLength); err != nil {
			return err
		}
	}
	for i, family := range c.Fonts.CJK {
		if err := validateFieldLength(fmt.Sprintf("fonts.cjk[%d]", i), family, MaxFamilyLength); err != nil {
			return err
		}
	}
	if err := validateFieldLength("fonts.fallback", c.Fonts.Fallback, MaxPathLength); err != nil {
		return err
	}

	if err := validateEnum("collision", c.Collision, collisions); err != nil {
		return err
	}
	if err := validateEnum("log.level", c.Log.Level, logLevels); err != nil {
		return err
	}
	return validateEnum("log.format", c.Log.Format, logFormats)
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// validateEnum accepts empty values and case-insensitive members of allowed.
func validateEnum(fieldName, value string, allowed []string) error {
	if value == "" || slices.Contains(allowed, strings.ToLower(value)) {
		return nil
	}
	return fmt.Errorf("%w: %s %q (expected %s)", ErrInvalidValue, fieldName, value, strings.Join(allowed, ", "))
}

// ApplyEnv overrides fields from TOPDF_* environment variables.
// getenv is usually os.Getenv; tests pass a map lookup.
// TOPDF_FONT_DIRS is split with the platform list separator.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvOutput); v != "" {
		c.Output.Dir = v
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, EnvWorkers, v)
		}
		c.Workers = n
	}
	if v := getenv(EnvPageSize); v != "" {
		c.Page.Size = v
	}
	if v := getenv(EnvFontDirs); v != "" {
		c.Fonts.Dirs = slices.DeleteFunc(filepath.SplitList(v), func(s string) bool { return s == "" })
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	return c.Validate()
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
// Fields missing from the file keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if isFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\") || strings.HasSuffix(s, ".yaml") || strings.HasSuffix(s, ".yml")
}

// SearchPaths lists the candidate files for a config name, in lookup order:
// the current directory first, then the user config directory.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, appDir, name+ext))
		}
	}
	return paths
}

// resolveConfigPath searches for a config file by name in standard locations.
func resolveConfigPath(name string) (string, error) {
	tried := SearchPaths(name)
	for _, p := range tried {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
