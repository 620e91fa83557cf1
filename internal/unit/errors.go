package unit

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a client failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindInvalidIdentifier
	KindParse
	KindTimeout
	KindCommandFailed
	KindIO
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindInvalidIdentifier:
		return "invalid unit name"
	case KindParse:
		return "parse error"
	case KindTimeout:
		return "timeout"
	case KindCommandFailed:
		return "command failed"
	case KindIO:
		return "io error"
	case KindInternal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// Error is the typed failure every client operation returns.
//
// Op names the control-plane operation ("systemctl start", "journalctl"),
// Unit the identifier it was applied to. ExitCode and Stderr are only
// meaningful for KindCommandFailed, where they carry the raw evidence
// from the failed process.
type Error struct {
	Kind     Kind
	Op       string
	Unit     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Unit != "" {
			b.WriteString(" ")
			b.WriteString(e.Unit)
		}
		b.WriteString(": ")
	} else if e.Unit != "" {
		b.WriteString(e.Unit)
		b.WriteString(": ")
	}
	switch {
	case e.Kind == KindCommandFailed:
		fmt.Fprintf(&b, "exit status %d", e.ExitCode)
		if s := firstLine(e.Stderr); s != "" {
			b.WriteString(": ")
			b.WriteString(s)
		}
	case e.Err != nil:
		b.WriteString(e.Kind.String())
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrKind extracts the Kind from err, or KindUnknown when err is not
// (and does not wrap) a *Error.
func ErrKind(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool          { return ErrKind(err) == KindNotFound }
func IsPermissionDenied(err error) bool  { return ErrKind(err) == KindPermissionDenied }
func IsInvalidIdentifier(err error) bool { return ErrKind(err) == KindInvalidIdentifier }
func IsTimeout(err error) bool           { return ErrKind(err) == KindTimeout }

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
