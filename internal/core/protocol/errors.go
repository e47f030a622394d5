package protocol

import (
	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrTransportFailed  = errors.New("transport failed")
	ErrListenFailed     = errors.New("listen failed")
	ErrDialFailed       = errors.New("dial failed")
)

type ErrorCode uint16

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodeConnectionClosed
	ErrorCodeFrameTooLarge
	ErrorCodeInvalidFrame
	ErrorCodeTransportFailed
	ErrorCodeListenFailed
	ErrorCodeDialFailed
)

// Error is a transport failure tagged with a code and the peer it happened on.
type Error struct {
	Code    ErrorCode
	Message string
	Peer    string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Peer != "" {
		msg += " (peer " + e.Peer + ")"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the peer should be dropped.
func (e *Error) IsFatal() bool {
	switch e.Code {
	case ErrorCodeConnectionClosed, ErrorCodeInvalidFrame, ErrorCodeTransportFailed:
		return true
	default:
		return false
	}
}

var errorCodeMap = map[error]ErrorCode{
	ErrConnectionClosed: ErrorCodeConnectionClosed,
	ErrFrameTooLarge:    ErrorCodeFrameTooLarge,
	ErrInvalidFrame:     ErrorCodeInvalidFrame,
	ErrTransportFailed:  ErrorCodeTransportFailed,
	ErrListenFailed:     ErrorCodeListenFailed,
	ErrDialFailed:       ErrorCodeDialFailed,
}

// GetErrorCode maps err onto a code, looking through wrapping.
func GetErrorCode(err error) ErrorCode {
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrorCodeUnknown
}

// WrapError tags err with the code of the first sentinel it matches, defaulting to fallback.
func WrapError(err error, fallback error, message, peer string) *Error {
	code := GetErrorCode(err)
	if code == ErrorCodeUnknown {
		code = errorCodeMap[fallback]
	}
	return &Error{Code: code, Message: message, Peer: peer, Cause: err}
}
