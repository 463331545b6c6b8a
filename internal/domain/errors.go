package domain

import "errors"

var (
	// ErrInvalidArgument is returned when a request names neither or both
	// of song id and video URL.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedSource is returned for remote URLs whose host is not a
	// recognized provider.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrLookupFailed is returned when remote metadata resolution fails.
	ErrLookupFailed = errors.New("lookup failed")

	ErrNotFound = errors.New("not found")

	// ErrAlreadyVoted is returned when a user already holds a vote, implicit
	// or explicit, on a packet.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrStore wraps transient persistence failures.
	ErrStore = errors.New("store error")
)
