package sandbox

import (
	"errors"
	"fmt"
)

// Kind classifies a sandbox failure.
type Kind int

const (
	// KindGit means a git subprocess failed.
	KindGit Kind = iota + 1
	// KindIO means a filesystem operation failed.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindGit:
		return "git"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by Sandbox methods. It carries an
// operator-facing message and no cause chain.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sandbox: %s error: %s", e.Kind, e.Msg)
}

// IsKind reports whether err is a sandbox *Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

func ioErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindIO, Msg: fmt.Sprintf(format, args...)}
}
