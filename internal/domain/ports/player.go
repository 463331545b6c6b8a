package ports

import (
	"context"

	"jukebox/internal/domain"
)

// Player is the opaque single-item playback device.
type Player interface {
	Play(ctx context.Context, item domain.PlayItem) error
	Stop()
	// HasEnded reports whether the player is idle: either nothing was ever
	// handed to it or the last item finished.
	HasEnded() bool
	// NowPlaying returns the current item; ok is false when idle.
	NowPlaying() (item domain.PlayItem, ok bool)
}
