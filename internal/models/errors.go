package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrArchiveFormat ErrorType = iota
	ErrMissingField
	ErrCacheCorrupt
	ErrPersist
	ErrVersionParse
	ErrFileOp
	ErrInvalidConfig
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrArchiveFormat:
		return "ArchiveFormat"
	case ErrMissingField:
		return "MissingField"
	case ErrCacheCorrupt:
		return "CacheCorrupt"
	case ErrPersist:
		return "Persist"
	case ErrVersionParse:
		return "VersionParse"
	case ErrFileOp:
		return "FileOp"
	case ErrInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// RepoError represents an error raised while maintaining the repository.
// Package holds the archive path or package name the error relates to, if any.
type RepoError struct {
	Type    ErrorType
	Package string
	Err     error
}

// Error implements the error interface
func (e *RepoError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *RepoError) Unwrap() error {
	return e.Err
}

// IsType reports whether err wraps a *RepoError of the given type.
func IsType(err error, t ErrorType) bool {
	var re *RepoError
	return errors.As(err, &re) && re.Type == t
}
