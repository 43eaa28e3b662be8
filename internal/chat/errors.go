package chat

import "errors"

var (
	// ErrEmptyMessage rejects whitespace-only sends before any network effect.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNotAuthenticated rejects sends when no user identity is known.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStreamNotOpen rejects sends while the stream is down.
	ErrStreamNotOpen = errors.New("stream not open")
)
