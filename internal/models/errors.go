package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies application errors into a closed set of variants.
// Every error crossing a component boundary is wrapped in an *AppError
// carrying exactly one kind, so callers can map failures exhaustively
// without string matching.
type ErrorKind int

const (
	// KindInternal is the catch-all for unexpected failures.
	KindInternal ErrorKind = iota
	// KindValidation indicates rejected input.
	KindValidation
	// KindNotFound indicates a missing record or artifact.
	KindNotFound
	// KindSessionNotFound indicates no matching Plex playback session.
	KindSessionNotFound
	// KindMediaSource indicates the session's source file could not be resolved.
	KindMediaSource
	// KindQuota indicates a per-user stored artifact limit was hit.
	KindQuota
	// KindProcessing indicates an ffmpeg execution failure.
	KindProcessing
	// KindStorage indicates a filesystem or persistence failure.
	KindStorage
	// KindAuth indicates an authentication or token failure.
	KindAuth
	// KindExternal indicates a Plex API failure.
	KindExternal
	// KindUnavailable indicates a dependency is circuit-broken.
	KindUnavailable
)

// String returns the kind name used in logs and API error payloads.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindSessionNotFound:
		return "session_not_found"
	case KindMediaSource:
		return "media_source"
	case KindQuota:
		return "quota_exceeded"
	case KindProcessing:
		return "processing"
	case KindStorage:
		return "storage"
	case KindAuth:
		return "auth"
	case KindExternal:
		return "external"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// AppError is the application error type. It carries a kind, a human-readable
// message, and an optional wrapped cause.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError of the same kind. This lets
// callers compare against kind prototypes with errors.Is.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if !errors.As(target, &appErr) {
		return false
	}
	return appErr.Kind == e.Kind && (appErr.Message == "" || appErr.Message == e.Message)
}

// NewError creates an *AppError with the given kind and message.
func NewError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err in an *AppError with the given kind and message.
// A nil err returns nil.
func WrapError(kind ErrorKind, err error, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err. Errors that are not *AppError report
// KindInternal.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// Common validation errors for models.
var (
	// ErrUserIDRequired indicates a required user ID field is zero.
	ErrUserIDRequired = errors.New("user_id is required")

	// ErrTitleRequired indicates a required title field is empty.
	ErrTitleRequired = errors.New("title is required")

	// ErrFilePathRequired indicates a required file path field is empty.
	ErrFilePathRequired = errors.New("file_path is required")

	// ErrSourceClipIDRequired indicates a required source clip ID field is zero.
	ErrSourceClipIDRequired = errors.New("source_clip_id is required")

	// ErrUsernameRequired indicates a required username field is empty.
	ErrUsernameRequired = errors.New("username is required")

	// ErrInvalidTimeRange indicates end time is not after start time.
	ErrInvalidTimeRange = errors.New("end time must be after start time")

	// ErrInvalidArtifactKind indicates an unrecognized artifact kind.
	ErrInvalidArtifactKind = errors.New("invalid artifact kind: must be 'video', 'edit', 'snapshot', or 'thumbnail'")
)
