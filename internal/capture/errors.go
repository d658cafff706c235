package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"syscall"
)

// Error codes follow the speech recognition vocabulary the UI reports.
const (
	CodeNetwork           = "network"
	CodeNoSpeech          = "no-speech"
	CodeAborted           = "aborted"
	CodeAudioCapture      = "audio-capture"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeTranscription     = "transcription"
)

// Error is a failed capture session.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "capture: " + e.Code
	}
	return fmt.Sprintf("capture: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps err to an *Error, keeping one that is already classified.
func classify(ctx context.Context, err error, fallback string) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &Error{Code: CodeAborted, Err: err}
	}
	if isNetwork(err) {
		return &Error{Code: CodeNetwork, Err: err}
	}
	return &Error{Code: fallback, Err: err}
}

// isNetwork reports transport failures. A bare syscall.Errno satisfies
// net.Error too, so local OS errors are excluded unless a network type
// wraps them.
func isNetwork(err error) bool {
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
		urlErr *url.Error
	)
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
