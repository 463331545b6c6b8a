package ports

import (
	"context"

	"jukebox/internal/domain"
)

// PacketOrder selects the sort key for packet listings.
type PacketOrder string

const (
	OrderByArrivalTime PacketOrder = "arrivalTime"
	OrderByFinishTime  PacketOrder = "finishTime"
)

// PacketStore is the transactional packet and vote store. Implementations
// must enforce uniqueness of (playerName, songId) and (playerName, videoUrl)
// per packet and of (packet, user) per vote.
type PacketStore interface {
	FindPacket(ctx context.Context, player string, ref domain.ItemRef) (domain.Packet, error)
	InsertPacket(ctx context.Context, p domain.Packet) error
	DeletePacket(ctx context.Context, id domain.PacketID) error
	DeleteAll(ctx context.Context, player string) error
	ListPackets(ctx context.Context, player string, order PacketOrder) ([]domain.Packet, error)
	ListUserPackets(ctx context.Context, player, user string, order PacketOrder) ([]domain.Packet, error)
	SetFinishTime(ctx context.Context, id domain.PacketID, t float64) error
	// AppendVote records an additional vote; returns domain.ErrAlreadyVoted
	// when the (packet, user) pair already exists.
	AppendVote(ctx context.Context, id domain.PacketID, user string) error
	CountPackets(ctx context.Context, player string) (int, error)
	CountDistinctUsers(ctx context.Context, player string) (int, error)
	// MaxArrivalTime returns the latest arrival time among the player's
	// packets; ok is false when no packets exist.
	MaxArrivalTime(ctx context.Context, player string) (t float64, ok bool, err error)
}

// SongStore provides read access to the local library plus the upsert and
// prune operations the library scanner needs.
type SongStore interface {
	SongByID(ctx context.Context, id string) (domain.Song, error)
	SongByPath(ctx context.Context, path string) (domain.Song, error)
	ListSongs(ctx context.Context) ([]domain.Song, error)
	SongPaths(ctx context.Context) ([]string, error)
	CountSongs(ctx context.Context) (int, error)
	// RandomSong draws uniformly from songs whose path is not excluded;
	// ok is false when the filter leaves nothing.
	RandomSong(ctx context.Context, excludePaths []string) (s domain.Song, ok bool, err error)
	UpsertSong(ctx context.Context, s domain.Song) error
	DeleteSongByPath(ctx context.Context, path string) error
}

// HistoryStore records completed plays.
type HistoryStore interface {
	AppendHistory(ctx context.Context, e domain.PlayHistoryEntry) error
	ListHistory(ctx context.Context, player string, limit int) ([]domain.PlayHistoryEntry, error)
}
