package ports

import (
	"context"

	"jukebox/internal/domain"
)

// RemoteFetcher resolves a video URL to its metadata.
type RemoteFetcher interface {
	// Supports reports whether the URL's host belongs to a recognized
	// provider. Cheap; performs no network I/O.
	Supports(url string) bool
	Fetch(ctx context.Context, url string) (domain.VideoDetails, error)
}
