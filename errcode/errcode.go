package errcode

import "errors"

// Code is a stable error identifier shared by logs, the bus and the portal.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	Timeout       Code = "timeout"
	Cancelled     Code = "cancelled"

	// Persistent records.
	InvalidRecord Code = "invalid_record"
	CommitFailed  Code = "commit_failed"
	VerifyFailed  Code = "verify_failed"

	// Connectivity.
	NotAssociated Code = "not_associated"
	FetchFailed   Code = "fetch_failed"

	// Restart asks the composition root to reboot the device.
	Restart Code = "restart"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause next to a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, SomeCode) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E.
func New(c Code, op, msg string) error { return &E{C: c, Op: op, Msg: msg} }

// Wrap builds an *E around a cause. A nil cause yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}
