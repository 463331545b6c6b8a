// Package memory holds an in-process store used by tests and by
// single-node deployments that do not need Mongo. It enforces the same
// uniqueness contract as the Mongo repository: one packet per
// (playerName, songId) or (playerName, videoUrl), one vote per
// (packet, user).
package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"jukebox/internal/domain"
	"jukebox/internal/domain/ports"
)

type Store struct {
	mu      sync.RWMutex
	packets map[domain.PacketID]domain.Packet
	songs   map[string]domain.Song
	history []domain.PlayHistoryEntry
	rng     *rand.Rand
}

type Option func(*Store)

// WithSeed makes random selection deterministic.
func WithSeed(seed int64) Option {
	return func(s *Store) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		packets: make(map[domain.PacketID]domain.Packet),
		songs:   make(map[string]domain.Song),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- PacketStore ---

func (s *Store) FindPacket(_ context.Context, player string, ref domain.ItemRef) (domain.Packet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packets {
		if p.PlayerName == player && ref.Matches(p) {
			return clonePacket(p), nil
		}
	}
	return domain.Packet{}, domain.ErrNotFound
}

func (s *Store) InsertPacket(_ context.Context, p domain.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.packets {
		if existing.PlayerName != p.PlayerName {
			continue
		}
		if p.Kind == domain.KindLocal && existing.Kind == domain.KindLocal && existing.SongID == p.SongID {
			return domain.ErrAlreadyVoted
		}
		if p.Kind == domain.KindRemote && existing.Kind == domain.KindRemote && existing.VideoURL == p.VideoURL {
			return domain.ErrAlreadyVoted
		}
	}
	if p.Kind == domain.KindLocal {
		if _, ok := s.songs[p.SongID]; !ok {
			return domain.ErrNotFound
		}
	}
	s.packets[p.ID] = clonePacket(p)
	return nil
}

func (s *Store) DeletePacket(_ context.Context, id domain.PacketID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.packets, id)
	return nil
}

func (s *Store) DeleteAll(_ context.Context, player string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.packets {
		if p.PlayerName == player {
			delete(s.packets, id)
		}
	}
	return nil
}

func (s *Store) ListPackets(_ context.Context, player string, order ports.PacketOrder) ([]domain.Packet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Packet
	for _, p := range s.packets {
		if p.PlayerName == player {
			out = append(out, clonePacket(p))
		}
	}
	sortPackets(out, order)
	return out, nil
}

func (s *Store) ListUserPackets(_ context.Context, player, user string, order ports.PacketOrder) ([]domain.Packet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Packet
	for _, p := range s.packets {
		if p.PlayerName == player && p.User == user {
			out = append(out, clonePacket(p))
		}
	}
	sortPackets(out, order)
	return out, nil
}

func (s *Store) SetFinishTime(_ context.Context, id domain.PacketID, t float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packets[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.FinishTime = t
	s.packets[id] = p
	return nil
}

func (s *Store) AppendVote(_ context.Context, id domain.PacketID, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.HasVoted(user) {
		return domain.ErrAlreadyVoted
	}
	p.Votes = append(p.Votes, domain.Vote{User: user, CastAt: time.Now().UTC()})
	s.packets[id] = p
	return nil
}

func (s *Store) CountPackets(_ context.Context, player string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.packets {
		if p.PlayerName == player {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountDistinctUsers(_ context.Context, player string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[string]struct{})
	for _, p := range s.packets {
		if p.PlayerName == player {
			users[p.User] = struct{}{}
		}
	}
	return len(users), nil
}

func (s *Store) MaxArrivalTime(_ context.Context, player string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		max   float64
		found bool
	)
	for _, p := range s.packets {
		if p.PlayerName != player {
			continue
		}
		if !found || p.ArrivalTime > max {
			max = p.ArrivalTime
			found = true
		}
	}
	return max, found, nil
}

// --- SongStore ---

func (s *Store) SongByID(_ context.Context, id string) (domain.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	song, ok := s.songs[id]
	if !ok {
		return domain.Song{}, domain.ErrNotFound
	}
	return song, nil
}

func (s *Store) SongByPath(_ context.Context, path string) (domain.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, song := range s.songs {
		if song.Path == path {
			return song, nil
		}
	}
	return domain.Song{}, domain.ErrNotFound
}

func (s *Store) ListSongs(_ context.Context) ([]domain.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Song, 0, len(s.songs))
	for _, song := range s.songs {
		out = append(out, song)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) SongPaths(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.songs))
	for _, song := range s.songs {
		out = append(out, song.Path)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CountSongs(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.songs), nil
}

func (s *Store) RandomSong(_ context.Context, excludePaths []string) (domain.Song, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	excluded := make(map[string]struct{}, len(excludePaths))
	for _, p := range excludePaths {
		excluded[p] = struct{}{}
	}
	var eligible []domain.Song
	for _, song := range s.songs {
		if _, ok := excluded[song.Path]; !ok {
			eligible = append(eligible, song)
		}
	}
	if len(eligible) == 0 {
		return domain.Song{}, false, nil
	}
	// Stable order before sampling keeps seeded draws reproducible.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Path < eligible[j].Path })
	return eligible[s.rng.Intn(len(eligible))], true, nil
}

func (s *Store) UpsertSong(_ context.Context, song domain.Song) error {
	if err := song.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs[song.ID] = song
	return nil
}

func (s *Store) DeleteSongByPath(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, song := range s.songs {
		if song.Path == path {
			delete(s.songs, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

// --- HistoryStore ---

func (s *Store) AppendHistory(_ context.Context, e domain.PlayHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, e)
	return nil
}

func (s *Store) ListHistory(_ context.Context, player string, limit int) ([]domain.PlayHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PlayHistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].PlayerName != player {
			continue
		}
		out = append(out, s.history[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func sortPackets(pkts []domain.Packet, order ports.PacketOrder) {
	sort.SliceStable(pkts, func(i, j int) bool {
		a, b := pkts[i], pkts[j]
		if order == ports.OrderByFinishTime {
			if a.FinishTime != b.FinishTime {
				return a.FinishTime < b.FinishTime
			}
		}
		if a.ArrivalTime != b.ArrivalTime {
			return a.ArrivalTime < b.ArrivalTime
		}
		return a.Seq < b.Seq
	})
}

func clonePacket(p domain.Packet) domain.Packet {
	out := p
	if p.Votes != nil {
		out.Votes = append([]domain.Vote(nil), p.Votes...)
	}
	return out
}
