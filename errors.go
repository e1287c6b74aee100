package scuttlechat

import (
	"errors"
	"fmt"

	"github.com/okwme/scuttle-chat/pkg/connection"
	"github.com/okwme/scuttle-chat/pkg/crypto"
)

// ErrorCode identifies the type of error for programmatic handling.
type ErrorCode int

const (
	// ErrCodeUnknown indicates an unknown or unclassified error.
	ErrCodeUnknown ErrorCode = iota

	// ErrCodeConnectionFailed indicates an outbound dial timed out or was refused.
	ErrCodeConnectionFailed

	// ErrCodeHandshakeFailed indicates the peer could not be authenticated.
	ErrCodeHandshakeFailed

	// ErrCodeChannelRead indicates the inbound encrypted channel failed
	// after the handshake.
	ErrCodeChannelRead

	// ErrCodeChannelWrite indicates the outbound encrypted channel failed
	// after the handshake.
	ErrCodeChannelWrite

	// ErrCodeSendQueueClosed indicates a send was attempted on a closed
	// connection's outbound queue.
	ErrCodeSendQueueClosed

	// ErrCodeEventSinkClosed indicates the shared event sink went away
	// while a connection was still producing events.
	ErrCodeEventSinkClosed

	// ErrCodePeerBlocked indicates the peer is on the blocklist.
	ErrCodePeerBlocked

	// ErrCodeInvalidConfig indicates the configuration is invalid.
	ErrCodeInvalidConfig

	// ErrCodeNodeNotStarted indicates the node has not been started.
	ErrCodeNodeNotStarted

	// ErrCodeNodeAlreadyStarted indicates the node is already running.
	ErrCodeNodeAlreadyStarted
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeUnknown:
		return "Unknown"
	case ErrCodeConnectionFailed:
		return "ConnectionFailed"
	case ErrCodeHandshakeFailed:
		return "HandshakeFailed"
	case ErrCodeChannelRead:
		return "ChannelRead"
	case ErrCodeChannelWrite:
		return "ChannelWrite"
	case ErrCodeSendQueueClosed:
		return "SendQueueClosed"
	case ErrCodeEventSinkClosed:
		return "EventSinkClosed"
	case ErrCodePeerBlocked:
		return "PeerBlocked"
	case ErrCodeInvalidConfig:
		return "InvalidConfig"
	case ErrCodeNodeNotStarted:
		return "NodeNotStarted"
	case ErrCodeNodeAlreadyStarted:
		return "NodeAlreadyStarted"
	default:
		return fmt.Sprintf("ErrorCode(%d)", c)
	}
}

// Error represents a scuttle-chat error with rich context.
// It provides structured information for programmatic error handling.
type Error struct {
	// Code identifies the type of error.
	Code ErrorCode

	// Message is a human-readable description of the error.
	Message string

	// Peer is the peer associated with the error, if any.
	Peer crypto.PublicKey

	// Cause is the underlying error, if any.
	Cause error

	// Retriable indicates whether the operation can be retried.
	Retriable bool
}

// Error returns a human-readable error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scuttlechat: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("scuttlechat: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Two scuttle-chat errors are considered equal if they have the same error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsRetriable returns true if the error indicates a retriable operation.
func IsRetriable(err error) bool {
	var scErr *Error
	if errors.As(err, &scErr) {
		return scErr.Retriable
	}
	return false
}

// IsPermanent returns true if the error indicates a permanent failure.
// Permanent failures should not be retried.
func IsPermanent(err error) bool {
	var scErr *Error
	if errors.As(err, &scErr) {
		switch scErr.Code {
		case ErrCodePeerBlocked, ErrCodeInvalidConfig:
			return true
		}
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error with the given code, message, and cause.
func NewErrorWithCause(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPeerError creates a new Error associated with a specific peer.
func NewPeerError(code ErrorCode, message string, peer crypto.PublicKey) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Peer:    peer,
	}
}

// Classify maps a connection-layer error onto its ErrorCode. Dial failures
// are marked retriable; authentication failures are not.
func Classify(err error) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, connection.ErrCannotConnect):
		return &Error{Code: ErrCodeConnectionFailed, Message: "cannot connect to peer", Cause: err, Retriable: true}
	case errors.Is(err, connection.ErrHandshakeFailed):
		return &Error{Code: ErrCodeHandshakeFailed, Message: "handshake failed", Cause: err}
	case errors.Is(err, connection.ErrChannelRead):
		return &Error{Code: ErrCodeChannelRead, Message: "encrypted channel read failed", Cause: err}
	case errors.Is(err, connection.ErrChannelWrite):
		return &Error{Code: ErrCodeChannelWrite, Message: "encrypted channel write failed", Cause: err}
	case errors.Is(err, connection.ErrSendQueueClosed):
		return &Error{Code: ErrCodeSendQueueClosed, Message: "send queue closed", Cause: err}
	case errors.Is(err, connection.ErrEventSinkClosed):
		return &Error{Code: ErrCodeEventSinkClosed, Message: "event sink closed", Cause: err}
	default:
		return &Error{Code: ErrCodeUnknown, Message: "connection error", Cause: err}
	}
}

// Sentinel errors for peer admission.
var (
	// ErrPeerBlocked indicates the peer is on the blocklist.
	ErrPeerBlocked = errors.New("peer is blocked")

	// ErrPeerNotConnected indicates there is no live connection to the peer.
	ErrPeerNotConnected = errors.New("not connected to peer")
)

// Sentinel errors for configuration.
var (
	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingKeypair indicates no identity keypair was provided.
	ErrMissingKeypair = errors.New("identity keypair is required")

	// ErrMissingAddressBookPath indicates no address book path was provided.
	ErrMissingAddressBookPath = errors.New("address book path is required")
)

// Sentinel errors for node operations.
var (
	// ErrNodeNotStarted indicates the node has not been started.
	ErrNodeNotStarted = errors.New("node not started")

	// ErrNodeAlreadyStarted indicates the node is already running.
	ErrNodeAlreadyStarted = errors.New("node already started")
)
