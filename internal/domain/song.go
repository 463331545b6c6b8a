package domain

import (
	"errors"
	"time"
)

// Song is one track in the local library.
type Song struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Title   string    `json:"title"`
	Artist  string    `json:"artist,omitempty"`
	Length  float64   `json:"length"`
	AddedAt time.Time `json:"addedAt"`
}

func (s Song) Validate() error {
	if s.ID == "" {
		return errors.New("song id is required")
	}
	if s.Path == "" {
		return errors.New("song path is required")
	}
	if s.Length <= 0 {
		return errors.New("song length must be positive")
	}
	return nil
}

// VideoDetails is the metadata a remote fetcher resolves for a video URL.
type VideoDetails struct {
	Title  string  `json:"title"`
	Length float64 `json:"length"`
}

// PlayHistoryEntry records one completed hand-off of a song to the player.
type PlayHistoryEntry struct {
	ID         string    `json:"id"`
	SongID     string    `json:"songId"`
	SongTitle  string    `json:"songTitle,omitempty"`
	User       string    `json:"user"`
	PlayerName string    `json:"playerName"`
	PlayedAt   time.Time `json:"playedAt"`
}
