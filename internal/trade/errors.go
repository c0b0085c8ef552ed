package trade

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindValidation: a precondition failed before any I/O was attempted.
	KindValidation ErrorKind = iota
	// KindTransport: the venue could not be reached or timed out.
	KindTransport
	// KindApplication: the venue answered, but reported failure.
	KindApplication
	// KindIntegrity: the venue and local bookkeeping disagree about a
	// submitted order. Requires manual intervention.
	KindIntegrity
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Transportf(err error, format string, args ...any) error {
	return &Error{Kind: KindTransport, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Applicationf(format string, args ...any) error {
	return &Error{Kind: KindApplication, Msg: fmt.Sprintf(format, args...)}
}

func Integrityf(format string, args ...any) error {
	return &Error{Kind: KindIntegrity, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err if it carries one. The second return is
// false for plain errors.
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}

func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
