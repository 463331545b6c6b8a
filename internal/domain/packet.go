package domain

import (
	"errors"
	"strings"
	"time"
)

type PacketID string

// Kind discriminates the two packet payloads: a song from the local library
// or a remote video resolved from a URL.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// RandomUser is the reserved pseudo-user that owns packets enqueued by the
// random fallback selector.
const RandomUser = "RANDOM"

// Vote is one additional vote on a packet. The owning user's submission is
// an implicit vote and never appears here.
type Vote struct {
	User   string    `json:"user"`
	CastAt time.Time `json:"castAt"`
}

// Packet is one enqueued playback request owned by one user.
type Packet struct {
	ID PacketID `json:"id"`
	// Seq is a per-player monotonic insertion sequence. It is the final
	// play-order tie-break, so two packets with equal finish and arrival
	// times play in submission order.
	Seq         int64    `json:"seq"`
	PlayerName  string   `json:"playerName"`
	Kind        Kind     `json:"kind"`
	SongID      string   `json:"songId,omitempty"`
	VideoURL    string   `json:"videoUrl,omitempty"`
	VideoTitle  string   `json:"videoTitle,omitempty"`
	VideoLength float64  `json:"videoLength,omitempty"`
	User        string   `json:"user"`
	ArrivalTime float64  `json:"arrivalTime"`
	FinishTime  float64  `json:"finishTime"`
	Votes       []Vote   `json:"votes,omitempty"`
}

// Weight is the GPS service weight: the owner's implicit vote plus every
// additional vote. Never below 1.
func (p Packet) Weight() float64 {
	return float64(1 + len(p.Votes))
}

// NumVotes counts the implicit owner vote plus additional votes.
func (p Packet) NumVotes() int {
	return 1 + len(p.Votes)
}

func (p Packet) HasVoted(user string) bool {
	if user == "" {
		return false
	}
	if user == p.User {
		return true
	}
	for _, v := range p.Votes {
		if v.User == user {
			return true
		}
	}
	return false
}

// Validate checks domain invariants for Packet.
func (p Packet) Validate() error {
	if p.ID == "" {
		return errors.New("packet id is required")
	}
	if p.PlayerName == "" {
		return errors.New("player name is required")
	}
	if p.User == "" {
		return errors.New("user is required")
	}
	switch p.Kind {
	case KindLocal:
		if p.SongID == "" {
			return errors.New("local packet requires a song id")
		}
		if p.VideoURL != "" {
			return errors.New("local packet must not carry a video url")
		}
	case KindRemote:
		if p.VideoURL == "" {
			return errors.New("remote packet requires a video url")
		}
		if p.VideoLength <= 0 {
			return errors.New("remote packet requires a positive video length")
		}
	default:
		return errors.New("invalid kind: " + string(p.Kind))
	}
	for _, v := range p.Votes {
		if v.User == p.User {
			return errors.New("owner must not appear in additional votes")
		}
	}
	return nil
}

// ItemRef identifies a queued or queueable item by exactly one of song id
// or video URL.
type ItemRef struct {
	SongID   string `json:"songId,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

func (r ItemRef) Validate() error {
	hasSong := strings.TrimSpace(r.SongID) != ""
	hasURL := strings.TrimSpace(r.VideoURL) != ""
	if hasSong == hasURL {
		return ErrInvalidArgument
	}
	return nil
}

func (r ItemRef) Kind() Kind {
	if strings.TrimSpace(r.VideoURL) != "" {
		return KindRemote
	}
	return KindLocal
}

// Matches reports whether the reference names the given packet.
func (r ItemRef) Matches(p Packet) bool {
	if r.VideoURL != "" {
		return p.Kind == KindRemote && p.VideoURL == r.VideoURL
	}
	return p.Kind == KindLocal && p.SongID == r.SongID
}
