// Package apperr classifies errors into the kinds reported back to chat users.
package apperr

import "errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindParse
	KindSession
	KindQueue
	KindJoin
	KindResolution
	KindTransport
	KindThrottle
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindSession:
		return "session"
	case KindQueue:
		return "queue"
	case KindJoin:
		return "join"
	case KindResolution:
		return "resolution"
	case KindTransport:
		return "transport"
	case KindThrottle:
		return "throttle"
	default:
		return "unknown"
	}
}

// Error pairs an error with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a kinded error with the given message. Use for sentinels.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Wrap tags err with kind. A nil err stays nil, and an already kinded
// error keeps its original kind.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of the outermost kinded error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
