package plugin

import "errors"

// Error kinds. Every error returned by this package wraps exactly one of
// these sentinels; use errors.Is or KindOf to classify.
var (
	// ErrNotFound is returned for a missing plugin, entry file or function.
	ErrNotFound = errors.New("not found")

	// ErrLoad is returned when an entry script fails to evaluate or does
	// not return a table.
	ErrLoad = errors.New("plugin load error")

	// ErrInterpreter is returned when a located function fails, or when an
	// interpreter cannot be created.
	ErrInterpreter = errors.New("lua error")

	// ErrIO is returned for filesystem failures.
	ErrIO = errors.New("io error")

	// ErrDisabled is returned when calling into a disabled plugin.
	ErrDisabled = errors.New("plugin disabled")
)

// Kind classifies a plugin error.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindNotFound
	KindLoad
	KindInterpreter
	KindIO
	KindDisabled
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindLoad:
		return "load_error"
	case KindInterpreter:
		return "interpreter_error"
	case KindIO:
		return "io_error"
	case KindDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// KindOf returns the kind wrapped by err, or KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrLoad):
		return KindLoad
	case errors.Is(err, ErrInterpreter):
		return KindInterpreter
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, ErrDisabled):
		return KindDisabled
	default:
		return KindUnknown
	}
}
