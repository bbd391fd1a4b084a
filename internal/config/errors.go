package config

import (
	"errors"

	"github.com/dshills/keychord/internal/config/loader"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// ParseError represents an error while parsing a configuration file.
type ParseError = loader.ParseError
