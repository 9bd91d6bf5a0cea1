// Package errors provides error wrapping helpers and the error kinds surfaced
// by the feed engine to its callers.
package errors

import "fmt"

// Kind classifies an error surfaced by the feed engine (see feed package).
type Kind string

// Error kinds surfaced to callers of the repository engine.
const (
	// KindInvalidArgument covers empty id, malformed version, bad configuration.
	KindInvalidArgument Kind = "invalid_argument"
	// KindNotFound covers find/remove of an absent package.
	KindNotFound Kind = "not_found"
	// KindAlreadyExists covers add of an existing (id, version) with overwrite disabled.
	KindAlreadyExists Kind = "already_exists"
	// KindSymbolsRejected covers add of a symbols archive under the ignore-symbols policy.
	KindSymbolsRejected Kind = "symbols_rejected"
	// KindInvalidConfiguration covers a malformed cache filename or other bad setting.
	KindInvalidConfiguration Kind = "invalid_configuration"
	// KindTransient covers a recoverable I/O failure (e.g. one skipped drop-folder file).
	KindTransient Kind = "transient"
	// KindInternal covers unrecoverable invariant failures during rebuild.
	KindInternal Kind = "internal"
)

// KindError is an error tagged with a Kind so callers can branch on errors.As.
type KindError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *KindError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *KindError) Unwrap() error { return e.Err }

// New creates a KindError with no wrapped cause.
func New(kind Kind, msg string) error {
	return &KindError{Kind: kind, Msg: msg}
}

// Newf creates a KindError with a formatted message and no wrapped cause.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &KindError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WithKind wraps err with a Kind and a message.
func WithKind(kind Kind, msg string, err error) error {
	return &KindError{Kind: kind, Msg: msg, Err: err}
}

// WithKindf wraps err with a Kind and a formatted message.
func WithKindf(kind Kind, err error, format string, args ...interface{}) error {
	return &KindError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or something it wraps) is a KindError of kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if k, ok := err.(*KindError); ok && k.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Common hook errors, carried forward from the teacher's client-side hook package.
var (
	// ErrHookTypeEmpty is returned when a hook type is empty.
	ErrHookTypeEmpty = fmt.Errorf("hook type cannot be empty")
	// ErrHookExecution is returned when there's an error executing a hook.
	ErrHookExecution = fmt.Errorf("error executing hook")
	// ErrHookScript is returned when a hook script reports an error.
	ErrHookScript = fmt.Errorf("hook script error")
	// ErrHookLoad is returned when a hook script cannot be loaded.
	ErrHookLoad = fmt.Errorf("failed to load hook")
)

// Common configuration errors, carried forward from the teacher's config package.
var (
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
