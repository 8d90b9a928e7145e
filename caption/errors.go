package caption

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindQuotaExceeded
	KindTransient
	KindTerminal
	KindSourceNotReady
	KindEncodingFailed
	KindShareCancelled
	KindShareUnsupported
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "quota exceeded"
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	case KindSourceNotReady:
		return "source not ready"
	case KindEncodingFailed:
		return "encoding failed"
	case KindShareCancelled:
		return "share cancelled"
	case KindShareUnsupported:
		return "share unsupported"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline error. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// UserMessage returns the human-readable part of a classified error.
func UserMessage(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func QuotaExceeded(msg string) *Error {
	return &Error{Kind: KindQuotaExceeded, Message: msg}
}

func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Message: "the caption service is temporarily unavailable", Err: err}
}

func Terminal(msg string, err error) *Error {
	return &Error{Kind: KindTerminal, Message: msg, Err: err}
}

func SourceNotReady(err error) *Error {
	return &Error{Kind: KindSourceNotReady, Message: "media is not ready yet, wait for it to load and try again", Err: err}
}

func EncodingFailed(err error) *Error {
	return &Error{Kind: KindEncodingFailed, Message: "could not encode the captioned media", Err: err}
}

// Errorf builds a classified error with a formatted message.
func Errorf(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}
