// Package loader reads configuration files into typed structs.
//
// The format is chosen by file extension: .yaml and .yml are YAML, anything
// else is TOML. Unknown keys are rejected in both formats.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Format is a configuration file format.
type Format int

const (
	// FormatTOML is the default format.
	FormatTOML Format = iota

	// FormatYAML is used for .yaml and .yml files.
	FormatYAML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf returns the format for path's extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// FileSystem is the file access the loader needs.
// Tests substitute an in-memory implementation.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader decodes configuration files.
type Loader struct {
	fs FileSystem
}

// New creates a loader reading from the OS file system.
func New() *Loader {
	return &Loader{fs: OSFS{}}
}

// NewWithFS creates a loader with a custom file system.
func NewWithFS(fsys FileSystem) *Loader {
	return &Loader{fs: fsys}
}

// LoadFile decodes the file at path into v. It reports found false, and
// leaves v untouched, when the file does not exist.
func (l *Loader) LoadFile(path string, v any) (found bool, err error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return true, Decode(path, FormatOf(path), data, v)
}

// Decode parses data in the given format into v. source names the data in
// error messages.
func Decode(source string, format Format, data []byte, v any) error {
	switch format {
	case FormatYAML:
		return decodeYAML(source, data, v)
	default:
		return decodeTOML(source, data, v)
	}
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
