// Package scheduler implements packet-by-packet Generalized Processor
// Sharing over a shared media player, as described in:
//
//	Abhay K. Parekh and Robert G. Gallager. 1993. A generalized processor
//	sharing approach to flow control in integrated services networks: the
//	single-node case. IEEE/ACM Trans. Netw. 1, 3, 344-357.
//
// Each user is a GPS session; each queued item is a packet whose weight is
// its vote count. Packets are served globally by ascending finish time, so
// no user can monopolize the player regardless of how fast they enqueue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"jukebox/internal/domain"
	"jukebox/internal/domain/ports"
	"jukebox/internal/metrics"
)

// DefaultTickInterval is the cadence of the background ticker.
const DefaultTickInterval = 250 * time.Millisecond

type Config struct {
	// PlayerName scopes all packets to one player instance.
	PlayerName string
	// DontRepeatFor is the fraction of the library kept in the discard
	// pile. Clamped to [0,1]; 0 disables repeat suppression.
	DontRepeatFor float64
	// MaxDontRepeatFor caps the discard pile size. Negative means no cap.
	MaxDontRepeatFor int
	// TickInterval is the ticker period; DefaultTickInterval when zero.
	TickInterval time.Duration
}

type Deps struct {
	Packets ports.PacketStore
	Songs   ports.SongStore
	History ports.HistoryStore
	Player  ports.Player
	Fetcher ports.RemoteFetcher
	Logger  *slog.Logger
}

// Scheduler owns the virtual clock, the discard pile and the active-session
// count. Every exposed operation and the ticker body run under one mutex:
// finish-time recomputation reads then writes a user's packets and must be
// atomic with the mutation that triggered it.
type Scheduler struct {
	cfg     Config
	packets ports.PacketStore
	songs   ports.SongStore
	history ports.HistoryStore
	player  ports.Player
	fetcher ports.RemoteFetcher
	logger  *slog.Logger

	mu             sync.Mutex
	clock          virtualClock
	discard        *discardPile
	activeSessions int
	nextSeq        int64
}

func New(ctx context.Context, cfg Config, deps Deps) (*Scheduler, error) {
	if cfg.PlayerName == "" {
		return nil, errors.New("player name is required")
	}
	if cfg.DontRepeatFor < 0 {
		cfg.DontRepeatFor = 0
	}
	if cfg.DontRepeatFor > 1 {
		cfg.DontRepeatFor = 1
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Scheduler{
		cfg:     cfg,
		packets: deps.Packets,
		songs:   deps.Songs,
		history: deps.History,
		player:  deps.Player,
		fetcher: deps.Fetcher,
		logger:  deps.Logger,
		discard: newDiscardPile(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// V resumes from the latest arrival time so that packets queued before
	// a restart keep their relative order.
	if t, ok, err := s.packets.MaxArrivalTime(ctx, cfg.PlayerName); err != nil {
		return nil, storeErr(err)
	} else if ok {
		s.clock.Set(t)
	}
	if err := s.refreshActiveSessionsLocked(ctx); err != nil {
		return nil, err
	}
	pkts, err := s.packets.ListPackets(ctx, cfg.PlayerName, ports.OrderByArrivalTime)
	if err != nil {
		return nil, storeErr(err)
	}
	for _, p := range pkts {
		if p.Seq >= s.nextSeq {
			s.nextSeq = p.Seq + 1
		}
	}
	if err := s.recomputeFinishTimesLocked(ctx, ""); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the background ticker. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go Ticker{Scheduler: s, Interval: s.cfg.TickInterval, Logger: s.logger}.Run(ctx)
}

// Vote adds a vote for an item, enqueueing it first when it is not yet
// queued. Exactly one of ref's fields must be set. Returns the queue as
// seen by the voting user.
func (s *Scheduler) Vote(ctx context.Context, user string, ref domain.ItemRef) ([]domain.QueueEntry, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidArgument)
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	// Resolve remote metadata before taking the lock so a slow fetch never
	// stalls the ticker. Skipped when the packet already exists.
	var details domain.VideoDetails
	if ref.Kind() == domain.KindRemote {
		if !s.fetcher.Supports(ref.VideoURL) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, ref.VideoURL)
		}
		_, err := s.packets.FindPacket(ctx, s.cfg.PlayerName, ref)
		if errors.Is(err, domain.ErrNotFound) {
			details, err = s.fetcher.Fetch(ctx, ref.VideoURL)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrLookupFailed, err)
			}
		} else if err != nil {
			return nil, storeErr(err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	packet, err := s.packets.FindPacket(ctx, s.cfg.PlayerName, ref)
	switch {
	case err == nil:
		if user == packet.User {
			return nil, domain.ErrAlreadyVoted
		}
		if err := s.packets.AppendVote(ctx, packet.ID, user); err != nil {
			if errors.Is(err, domain.ErrAlreadyVoted) {
				return nil, domain.ErrAlreadyVoted
			}
			return nil, storeErr(err)
		}
		metrics.VotesTotal.Inc()
		// A heavier packet shortens the owner's whole downstream chain.
		if err := s.recomputeFinishTimesLocked(ctx, packet.User); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		if _, err := s.enqueueLocked(ctx, user, ref, details); err != nil {
			return nil, err
		}
	default:
		return nil, storeErr(err)
	}

	return s.queueLocked(ctx, user)
}

// enqueueLocked inserts a new packet stamped with the current virtual time
// and refreshes the derived state. Remote details may be zero when the
// packet vanished between the unlocked pre-fetch and now; the fetch then
// happens under the lock, bounded by the fetcher's own timeout.
func (s *Scheduler) enqueueLocked(ctx context.Context, user string, ref domain.ItemRef, details domain.VideoDetails) (domain.Packet, error) {
	p := domain.Packet{
		ID:          domain.PacketID(uuid.NewString()),
		Seq:         s.nextSeq,
		PlayerName:  s.cfg.PlayerName,
		Kind:        ref.Kind(),
		User:        user,
		ArrivalTime: s.clock.Now(),
	}
	switch ref.Kind() {
	case domain.KindRemote:
		if details.Length <= 0 {
			var err error
			details, err = s.fetcher.Fetch(ctx, ref.VideoURL)
			if err != nil {
				return domain.Packet{}, fmt.Errorf("%w: %v", domain.ErrLookupFailed, err)
			}
		}
		p.VideoURL = ref.VideoURL
		p.VideoTitle = details.Title
		p.VideoLength = details.Length
	default:
		// Reject unknown song ids up front; the store's FK check backstops
		// this for racing deletes.
		if _, err := s.songs.SongByID(ctx, ref.SongID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Packet{}, fmt.Errorf("%w: song %s", domain.ErrNotFound, ref.SongID)
			}
			return domain.Packet{}, storeErr(err)
		}
		p.SongID = ref.SongID
	}

	if err := s.packets.InsertPacket(ctx, p); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyVoted) {
			return domain.Packet{}, err
		}
		return domain.Packet{}, storeErr(err)
	}
	s.nextSeq++
	metrics.VotesTotal.Inc()

	if err := s.recomputeFinishTimesLocked(ctx, user); err != nil {
		return domain.Packet{}, err
	}
	if err := s.refreshActiveSessionsLocked(ctx); err != nil {
		return domain.Packet{}, err
	}
	return p, nil
}

// Remove deletes the referenced packet and its votes. When the packet is
// the one playing, the player is stopped; with skip the virtual clock jumps
// to the packet's finish time, pulling every other queue forward.
func (s *Scheduler) Remove(ctx context.Context, ref domain.ItemRef, skip bool) ([]domain.QueueEntry, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.removeLocked(ctx, ref, skip); err != nil {
		return nil, err
	}
	return s.queueLocked(ctx, "")
}

func (s *Scheduler) removeLocked(ctx context.Context, ref domain.ItemRef, skip bool) error {
	packet, err := s.packets.FindPacket(ctx, s.cfg.PlayerName, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return storeErr(err)
	}

	if now, ok := s.player.NowPlaying(); ok && refMatchesItem(ref, now) {
		s.player.Stop()
		if skip {
			s.clock.Set(packet.FinishTime)
			metrics.VirtualTime.Set(s.clock.Now())
		}
	}

	if err := s.packets.DeletePacket(ctx, packet.ID); err != nil {
		return storeErr(err)
	}
	return s.refreshActiveSessionsLocked(ctx)
}

// Clear drops every packet for this player and stops playback.
func (s *Scheduler) Clear(ctx context.Context) ([]domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.packets.DeleteAll(ctx, s.cfg.PlayerName); err != nil {
		return nil, storeErr(err)
	}
	s.player.Stop()
	if err := s.refreshActiveSessionsLocked(ctx); err != nil {
		return nil, err
	}
	return s.queueLocked(ctx, "")
}

// Advance moves playback to the packet with the minimum finish time. On an
// empty queue it first tries to enqueue a random library song on behalf of
// the reserved RANDOM user; when none is eligible it returns (nil, nil).
func (s *Scheduler) Advance(ctx context.Context, skip bool) (*domain.PlayItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSessions == 0 {
		song, ok, err := s.randomPickLocked(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		if _, err := s.enqueueLocked(ctx, domain.RandomUser, domain.ItemRef{SongID: song.ID}, domain.VideoDetails{}); err != nil {
			return nil, err
		}
		metrics.RandomPicksTotal.Inc()
	}
	if s.activeSessions == 0 {
		return nil, nil
	}

	// Retire the finished item. It may already be gone when a caller
	// removed it directly; that removal is idempotent here.
	if now, ok := s.player.NowPlaying(); ok {
		if err := s.removeLocked(ctx, refForItem(now), skip); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	next, ok, err := s.headPacketLocked(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if next.Kind == domain.KindRemote {
		item := domain.RemoteItem(next)
		if err := s.player.Play(ctx, item); err != nil {
			return nil, fmt.Errorf("play %s: %w", item.URL, err)
		}
		metrics.PlaysTotal.WithLabelValues(string(domain.KindRemote)).Inc()
		return &item, nil
	}

	song, err := s.songs.SongByID(ctx, next.SongID)
	if err != nil {
		return nil, storeErr(err)
	}
	item := domain.LocalItem(song)
	if err := s.player.Play(ctx, item); err != nil {
		return nil, fmt.Errorf("play %s: %w", song.Path, err)
	}
	s.pushDiscardLocked(ctx, song.Path)
	if err := s.history.AppendHistory(ctx, domain.PlayHistoryEntry{
		ID:         uuid.NewString(),
		SongID:     song.ID,
		SongTitle:  song.Title,
		User:       next.User,
		PlayerName: s.cfg.PlayerName,
		PlayedAt:   time.Now().UTC(),
	}); err != nil {
		// History is best effort; the item is already playing.
		s.logger.Warn("append play history failed",
			slog.String("songId", song.ID),
			slog.String("error", err.Error()))
	}
	metrics.PlaysTotal.WithLabelValues(string(domain.KindLocal)).Inc()
	return &item, nil
}

func (s *Scheduler) headPacketLocked(ctx context.Context) (domain.Packet, bool, error) {
	pkts, err := s.packets.ListPackets(ctx, s.cfg.PlayerName, ports.OrderByFinishTime)
	if err != nil {
		return domain.Packet{}, false, storeErr(err)
	}
	if len(pkts) == 0 {
		return domain.Packet{}, false, nil
	}
	// The store sorts by finish time; enforce the full arrival/id tie-break.
	sortForPlayback(pkts)
	return pkts[0], true, nil
}

// Queue renders the play order: packets by ascending finish time, each
// annotated for the viewing user, with the now-playing item rotated to the
// front when it is still queued. Observation only.
func (s *Scheduler) Queue(ctx context.Context, viewer string) ([]domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueLocked(ctx, viewer)
}

func (s *Scheduler) queueLocked(ctx context.Context, viewer string) ([]domain.QueueEntry, error) {
	pkts, err := s.packets.ListPackets(ctx, s.cfg.PlayerName, ports.OrderByFinishTime)
	if err != nil {
		return nil, storeErr(err)
	}
	sortForPlayback(pkts)

	entries := make([]domain.QueueEntry, 0, len(pkts))
	for _, p := range pkts {
		var item domain.PlayItem
		if p.Kind == domain.KindRemote {
			item = domain.RemoteItem(p)
		} else {
			song, err := s.songs.SongByID(ctx, p.SongID)
			if err != nil {
				return nil, storeErr(err)
			}
			item = domain.LocalItem(song)
		}
		entries = append(entries, domain.QueueEntry{
			Item:     item,
			NumVotes: p.NumVotes(),
			Owner:    p.User,
			HasVoted: p.HasVoted(viewer),
		})
	}

	if now, ok := s.player.NowPlaying(); ok {
		for i, e := range entries {
			if domain.SameItem(e.Item, now) {
				rotated := make([]domain.QueueEntry, 0, len(entries))
				rotated = append(rotated, entries[i])
				rotated = append(rotated, entries[:i]...)
				rotated = append(rotated, entries[i+1:]...)
				return rotated, nil
			}
		}
	}
	return entries, nil
}

// NumQueued returns the number of queued packets.
func (s *Scheduler) NumQueued(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.packets.CountPackets(ctx, s.cfg.PlayerName)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// Empty reports whether no user has queued packets. Equivalent to a zero
// packet count: every mutation refreshes the session count before returning.
func (s *Scheduler) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSessions == 0
}

// VirtualTime returns the current virtual time V.
func (s *Scheduler) VirtualTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now()
}

// ActiveSessions returns the number of users with queued packets.
func (s *Scheduler) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSessions
}

// PlayerIdle reports whether the player has nothing in flight.
func (s *Scheduler) PlayerIdle() bool {
	return s.player.HasEnded()
}

// Tick advances V by interval normalized over the backlogged users, the GPS
// shared-server rate. No-op while the queue is empty.
func (s *Scheduler) Tick(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeSessions == 0 {
		return
	}
	s.clock.Advance(interval.Seconds() / float64(s.activeSessions))
	metrics.VirtualTime.Set(s.clock.Now())
}

// recomputeFinishTimesLocked reassigns finish times for one user's packets,
// or for all packets when user is empty (startup). Only changed values are
// written back.
func (s *Scheduler) recomputeFinishTimesLocked(ctx context.Context, user string) error {
	var (
		pkts []domain.Packet
		err  error
	)
	if user == "" {
		pkts, err = s.packets.ListPackets(ctx, s.cfg.PlayerName, ports.OrderByArrivalTime)
	} else {
		pkts, err = s.packets.ListUserPackets(ctx, s.cfg.PlayerName, user, ports.OrderByArrivalTime)
	}
	if err != nil {
		return storeErr(err)
	}

	lengths := make(map[domain.PacketID]float64, len(pkts))
	songLength := make(map[string]float64)
	for _, p := range pkts {
		if p.Kind == domain.KindRemote {
			lengths[p.ID] = p.VideoLength
			continue
		}
		l, ok := songLength[p.SongID]
		if !ok {
			song, err := s.songs.SongByID(ctx, p.SongID)
			if err != nil {
				return storeErr(err)
			}
			l = song.Length
			songLength[p.SongID] = l
		}
		lengths[p.ID] = l
	}

	finish := computeFinishTimes(pkts, lengths)
	for _, p := range pkts {
		if f := finish[p.ID]; f != p.FinishTime {
			if err := s.packets.SetFinishTime(ctx, p.ID, f); err != nil {
				return storeErr(err)
			}
		}
	}
	return nil
}

func (s *Scheduler) refreshActiveSessionsLocked(ctx context.Context) error {
	n, err := s.packets.CountDistinctUsers(ctx, s.cfg.PlayerName)
	if err != nil {
		return storeErr(err)
	}
	s.activeSessions = n
	metrics.ActiveSessions.Set(float64(n))

	depth, err := s.packets.CountPackets(ctx, s.cfg.PlayerName)
	if err != nil {
		return storeErr(err)
	}
	metrics.QueueDepth.Set(float64(depth))
	return nil
}

// randomPickLocked draws a library song for the random fallback, honoring
// the discard pile. ok is false when no eligible song exists.
func (s *Scheduler) randomPickLocked(ctx context.Context) (domain.Song, bool, error) {
	if s.cfg.DontRepeatFor == 0 || s.cfg.MaxDontRepeatFor == 0 {
		song, ok, err := s.songs.RandomSong(ctx, nil)
		if err != nil {
			return domain.Song{}, false, storeErr(err)
		}
		return song, ok, nil
	}

	paths, err := s.songs.SongPaths(ctx)
	if err != nil {
		return domain.Song{}, false, storeErr(err)
	}
	library := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		library[p] = struct{}{}
	}
	// Housekeeping: drop entries for deleted files, then re-apply the cap
	// derived from the current library size.
	s.discard.Retain(library)
	max := s.maxDiscardSize(len(paths))
	if max == 0 {
		s.discard.Clear()
		song, ok, err := s.songs.RandomSong(ctx, nil)
		if err != nil {
			return domain.Song{}, false, storeErr(err)
		}
		return song, ok, nil
	}
	s.discard.TrimTo(max)

	song, ok, err := s.songs.RandomSong(ctx, s.discard.Snapshot())
	if err != nil {
		return domain.Song{}, false, storeErr(err)
	}
	return song, ok, nil
}

// pushDiscardLocked records a played local song so the random fallback
// avoids it for a while.
func (s *Scheduler) pushDiscardLocked(ctx context.Context, path string) {
	if s.cfg.DontRepeatFor == 0 || s.cfg.MaxDontRepeatFor == 0 {
		return
	}
	count, err := s.songs.CountSongs(ctx)
	if err != nil {
		s.logger.Warn("discard pile update skipped", slog.String("error", err.Error()))
		return
	}
	max := s.maxDiscardSize(count)
	if max == 0 {
		return
	}
	s.discard.Push(path)
	s.discard.TrimTo(max)
	metrics.DiscardPileSize.Set(float64(s.discard.Len()))
}

// maxDiscardSize computes M = min(MaxDontRepeatFor, ⌊DontRepeatFor·size⌋).
func (s *Scheduler) maxDiscardSize(librarySize int) int {
	max := int(s.cfg.DontRepeatFor * float64(librarySize))
	if s.cfg.MaxDontRepeatFor >= 0 && s.cfg.MaxDontRepeatFor < max {
		max = s.cfg.MaxDontRepeatFor
	}
	return max
}

// DiscardPile returns the current pile contents in FIFO order.
func (s *Scheduler) DiscardPile() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discard.Snapshot()
}

func refForItem(item domain.PlayItem) domain.ItemRef {
	if item.Kind == domain.KindRemote {
		return domain.ItemRef{VideoURL: item.URL}
	}
	return domain.ItemRef{SongID: item.SongID}
}

func refMatchesItem(ref domain.ItemRef, item domain.PlayItem) bool {
	if ref.VideoURL != "" {
		return item.Kind == domain.KindRemote && item.URL == ref.VideoURL
	}
	return item.Kind == domain.KindLocal && item.SongID == ref.SongID
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyVoted) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStore, err)
}
