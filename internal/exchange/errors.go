package exchange

import (
	"context"
	"errors"
	"fmt"
)

const genericRemoteMessage = "Failed to fetch response from the backend."

var (
	// ErrAborted marks an exchange superseded or canceled by its caller.
	// It is never shown to the user.
	ErrAborted = errors.New("request aborted")

	// ErrMissingAudio is returned for a success response without
	// audio_response.
	ErrMissingAudio = errors.New("No audio response received from the backend.")

	ErrTooLarge = errors.New("response too large")
)

// RemoteError is a non-2xx response from the backend.
type RemoteError struct {
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return genericRemoteMessage
	}
	return e.Detail
}

// IsAbort reports whether err came from a canceled exchange.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

func aborted(err error) error {
	return fmt.Errorf("%w: %w", ErrAborted, err)
}
