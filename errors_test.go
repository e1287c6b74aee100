package scuttlechat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okwme/scuttle-chat/internal/testutil"
	"github.com/okwme/scuttle-chat/pkg/connection"
)

func TestErrorMessage(t *testing.T) {
	err := NewError(ErrCodeHandshakeFailed, "handshake failed")
	if got, want := err.Error(), "scuttlechat: handshake failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := errors.New("connection reset")
	err = NewErrorWithCause(ErrCodeChannelRead, "read failed", cause)
	if got, want := err.Error(), "scuttlechat: read failed: connection reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewErrorWithCause(ErrCodeConnectionFailed, "dial failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewError(ErrCodePeerBlocked, "peer one is blocked")
	b := NewError(ErrCodePeerBlocked, "peer two is blocked")
	c := NewError(ErrCodeHandshakeFailed, "handshake failed")

	if !errors.Is(a, b) {
		t.Error("errors with the same code should match")
	}
	if errors.Is(a, c) {
		t.Error("errors with different codes should not match")
	}
}

func TestIsRetriable(t *testing.T) {
	retriable := Classify(fmt.Errorf("dial: %w", connection.ErrCannotConnect))
	if !IsRetriable(retriable) {
		t.Error("dial failures should be retriable")
	}

	permanent := NewError(ErrCodePeerBlocked, "blocked")
	if IsRetriable(permanent) {
		t.Error("blocked peers are not retriable")
	}
	if !IsPermanent(permanent) {
		t.Error("blocked peers are permanent")
	}

	if IsRetriable(errors.New("plain error")) {
		t.Error("plain errors are not retriable")
	}
	if IsPermanent(errors.New("plain error")) {
		t.Error("plain errors are not permanent")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		retriable bool
	}{
		{"cannot connect", connection.ErrCannotConnect, ErrCodeConnectionFailed, true},
		{"handshake failed", connection.ErrHandshakeFailed, ErrCodeHandshakeFailed, false},
		{"channel read", connection.ErrChannelRead, ErrCodeChannelRead, false},
		{"channel write", connection.ErrChannelWrite, ErrCodeChannelWrite, false},
		{"send queue closed", connection.ErrSendQueueClosed, ErrCodeSendQueueClosed, false},
		{"event sink closed", connection.ErrEventSinkClosed, ErrCodeEventSinkClosed, false},
		{"unknown", errors.New("something else"), ErrCodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(fmt.Errorf("wrapped: %w", tt.err))
			if got.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", got.Code, tt.wantCode)
			}
			if got.Retriable != tt.retriable {
				t.Errorf("Retriable = %v, want %v", got.Retriable, tt.retriable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the original")
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestNewPeerError(t *testing.T) {
	peer := testutil.Keypair(5).Public
	err := NewPeerError(ErrCodePeerBlocked, "peer is blocked", peer)

	if err.Peer != peer {
		t.Error("peer not carried on the error")
	}
	if err.Code != ErrCodePeerBlocked {
		t.Errorf("Code = %v, want PeerBlocked", err.Code)
	}
}

func TestErrorCodeString(t *testing.T) {
	if got := ErrCodeHandshakeFailed.String(); got != "HandshakeFailed" {
		t.Errorf("String() = %q", got)
	}
	if got := ErrorCode(99).String(); got != "ErrorCode(99)" {
		t.Errorf("String() = %q", got)
	}
}
