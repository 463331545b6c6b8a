package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"jukebox/internal/domain"
	"jukebox/internal/metrics"
	"jukebox/internal/repository/memory"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testPlayer = "living-room"

// fakePlayer keeps the last item as NowPlaying after it ends, the way a
// real device does: the scheduler retires it on the next advance.
type fakePlayer struct {
	mu      sync.Mutex
	current *domain.PlayItem
	ended   bool
	stops   int
	played  []domain.PlayItem
}

func (p *fakePlayer) Play(_ context.Context, item domain.PlayItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &item
	p.ended = false
	p.played = append(p.played, item)
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	p.ended = true
	p.stops++
}

func (p *fakePlayer) HasEnded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current == nil || p.ended
}

func (p *fakePlayer) NowPlaying() (domain.PlayItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return domain.PlayItem{}, false
	}
	return *p.current, true
}

func (p *fakePlayer) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = true
}

type fakeFetcher struct {
	details map[string]domain.VideoDetails
	err     error
	calls   int
}

func (f *fakeFetcher) Supports(url string) bool {
	return strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be")
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (domain.VideoDetails, error) {
	f.calls++
	if f.err != nil {
		return domain.VideoDetails{}, f.err
	}
	d, ok := f.details[url]
	if !ok {
		return domain.VideoDetails{}, errors.New("no such video")
	}
	return d, nil
}

type testEnv struct {
	sched   *Scheduler
	store   *memory.Store
	player  *fakePlayer
	fetcher *fakeFetcher
}

func newTestEnv(t *testing.T, cfg Config, songs ...domain.Song) *testEnv {
	t.Helper()
	if cfg.PlayerName == "" {
		cfg.PlayerName = testPlayer
	}
	store := memory.New(memory.WithSeed(1))
	for _, s := range songs {
		if err := store.UpsertSong(context.Background(), s); err != nil {
			t.Fatalf("seed song %s: %v", s.ID, err)
		}
	}
	player := &fakePlayer{}
	fetcher := &fakeFetcher{details: map[string]domain.VideoDetails{
		"https://www.youtube.com/watch?v=abc": {Title: "Some Video", Length: 120},
	}}
	sched, err := New(context.Background(), cfg, Deps{
		Packets: store,
		Songs:   store,
		History: store,
		Player:  player,
		Fetcher: fetcher,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{sched: sched, store: store, player: player, fetcher: fetcher}
}

func song(id string, length float64) domain.Song {
	return domain.Song{ID: id, Path: "/music/" + id + ".mp3", Title: strings.ToUpper(id), Length: length}
}

func fourSongs() []domain.Song {
	return []domain.Song{song("a", 10), song("b", 10), song("c", 10), song("d", 10)}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func (e *testEnv) finishTimes(t *testing.T) map[string]float64 {
	t.Helper()
	pkts, err := e.store.ListPackets(context.Background(), testPlayer, "finishTime")
	if err != nil {
		t.Fatalf("list packets: %v", err)
	}
	out := make(map[string]float64, len(pkts))
	for _, p := range pkts {
		key := p.SongID
		if p.Kind == domain.KindRemote {
			key = p.VideoURL
		}
		out[key] = p.FinishTime
	}
	return out
}

func TestRoundRobinFairness(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	for _, v := range []struct{ user, song string }{
		{"u1", "a"}, {"u2", "b"}, {"u1", "c"}, {"u2", "d"},
	} {
		if _, err := e.sched.Vote(ctx, v.user, domain.ItemRef{SongID: v.song}); err != nil {
			t.Fatalf("vote(%s, %s): %v", v.user, v.song, err)
		}
	}

	finish := e.finishTimes(t)
	want := map[string]float64{"a": 10, "b": 10, "c": 20, "d": 20}
	for id, w := range want {
		if !almostEqual(finish[id], w) {
			t.Errorf("finish[%s] = %v, want %v", id, finish[id], w)
		}
	}

	queue, err := e.sched.Queue(ctx, "")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	var order []string
	for _, entry := range queue {
		order = append(order, entry.Item.SongID)
	}
	if got, want := strings.Join(order, ""), "abcd"; got != want {
		t.Errorf("play order = %q, want %q", got, want)
	}
}

func TestVotesAccelerateOwnerQueue(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	for _, v := range []struct{ user, song string }{
		{"u1", "a"}, {"u1", "c"}, {"u2", "b"},
	} {
		if _, err := e.sched.Vote(ctx, v.user, domain.ItemRef{SongID: v.song}); err != nil {
			t.Fatalf("vote(%s, %s): %v", v.user, v.song, err)
		}
	}
	finish := e.finishTimes(t)
	if !almostEqual(finish["a"], 10) || !almostEqual(finish["c"], 20) || !almostEqual(finish["b"], 10) {
		t.Fatalf("pre-vote finish times wrong: %v", finish)
	}

	for _, voter := range []string{"u3", "u4"} {
		if _, err := e.sched.Vote(ctx, voter, domain.ItemRef{SongID: "a"}); err != nil {
			t.Fatalf("vote(%s, a): %v", voter, err)
		}
	}

	finish = e.finishTimes(t)
	if !almostEqual(finish["a"], 10.0/3) {
		t.Errorf("finish[a] = %v, want %v", finish["a"], 10.0/3)
	}
	if !almostEqual(finish["c"], 10.0/3+10) {
		t.Errorf("finish[c] = %v, want %v", finish["c"], 10.0/3+10)
	}
	// u2's queue is untouched by votes on u1's packet.
	if !almostEqual(finish["b"], 10) {
		t.Errorf("finish[b] = %v, want 10", finish["b"])
	}

	queue, err := e.sched.Queue(ctx, "")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	var order []string
	for _, entry := range queue {
		order = append(order, entry.Item.SongID)
	}
	if got, want := strings.Join(order, ""), "abc"; got != want {
		t.Errorf("play order = %q, want %q", got, want)
	}
}

func TestSkipJumpsVirtualTime(t *testing.T) {
	e := newTestEnv(t, Config{}, song("a", 60))
	ctx := context.Background()

	if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: "a"}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	item, err := e.sched.Advance(ctx, false)
	if err != nil || item == nil {
		t.Fatalf("advance: item=%v err=%v", item, err)
	}

	// Let five seconds of virtual time elapse for the single session.
	for i := 0; i < 20; i++ {
		e.sched.Tick(DefaultTickInterval)
	}
	if v := e.sched.VirtualTime(); !almostEqual(v, 5) {
		t.Fatalf("V = %v, want 5", v)
	}

	queue, err := e.sched.Remove(ctx, domain.ItemRef{SongID: "a"}, true)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(queue) != 0 {
		t.Errorf("queue not empty after skip: %v", queue)
	}
	if v := e.sched.VirtualTime(); !almostEqual(v, 60) {
		t.Errorf("V = %v, want 60 after skip", v)
	}
	if !e.sched.Empty() {
		t.Error("scheduler not empty after skip")
	}
	if e.player.stops == 0 {
		t.Error("player was not stopped")
	}
}

// advanceToPlay drives Advance until an item starts, mirroring the two-step
// ticker behavior after a lone packet finishes.
func advanceToPlay(t *testing.T, e *testEnv) domain.PlayItem {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		item, err := e.sched.Advance(ctx, false)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if item != nil {
			return *item
		}
	}
	t.Fatal("advance never produced an item")
	return domain.PlayItem{}
}

func TestRandomFallbackAvoidsRecentRepeats(t *testing.T) {
	e := newTestEnv(t, Config{DontRepeatFor: 0.75, MaxDontRepeatFor: -1}, fourSongs()...)

	var played []string
	for i := 0; i < 12; i++ {
		item := advanceToPlay(t, e)
		if item.Kind != domain.KindLocal {
			t.Fatalf("random fallback played non-local item: %+v", item)
		}
		played = append(played, item.Path)
		if n := len(e.sched.DiscardPile()); n > 3 {
			t.Fatalf("discard pile overflow: %d entries", n)
		}
		e.player.finish()
	}

	// M=3: a song cannot recur within a window of three other picks.
	for i := 3; i < len(played); i++ {
		for j := i - 3; j < i; j++ {
			if played[i] == played[j] {
				t.Errorf("pick %d (%s) repeats pick %d within window: %v", i, played[i], j, played)
			}
		}
	}
}

func TestRandomFallbackDisabled(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)

	item := advanceToPlay(t, e)
	if item.Kind != domain.KindLocal {
		t.Fatalf("expected a local item, got %+v", item)
	}
	if n := len(e.sched.DiscardPile()); n != 0 {
		t.Errorf("discard pile should stay empty when disabled, has %d", n)
	}
}

func TestAdvanceEmptyLibraryIsNoop(t *testing.T) {
	e := newTestEnv(t, Config{})
	item, err := e.sched.Advance(context.Background(), false)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if item != nil {
		t.Errorf("expected no item, got %+v", item)
	}
	if !e.sched.Empty() {
		t.Error("scheduler should remain empty")
	}
}

func TestDuplicateVoteRejected(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: "a"}); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: "a"}); !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("owner revote: err = %v, want ErrAlreadyVoted", err)
	}

	// An additional voter is accepted once, then rejected.
	if _, err := e.sched.Vote(ctx, "u2", domain.ItemRef{SongID: "a"}); err != nil {
		t.Fatalf("u2 vote: %v", err)
	}
	if _, err := e.sched.Vote(ctx, "u2", domain.ItemRef{SongID: "a"}); !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("u2 revote: err = %v, want ErrAlreadyVoted", err)
	}

	queue, err := e.sched.Queue(ctx, "u2")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queue))
	}
	if queue[0].NumVotes != 2 {
		t.Errorf("numVotes = %d, want 2", queue[0].NumVotes)
	}
	if !queue[0].HasVoted {
		t.Error("viewer u2 should be marked as having voted")
	}
}

func TestUnsupportedRemoteRejected(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	v0 := e.sched.VirtualTime()
	_, err := e.sched.Vote(ctx, "u1", domain.ItemRef{VideoURL: "http://example.com/x"})
	if !errors.Is(err, domain.ErrUnsupportedSource) {
		t.Fatalf("err = %v, want ErrUnsupportedSource", err)
	}
	if n, _ := e.sched.NumQueued(ctx); n != 0 {
		t.Errorf("numQueued = %d, want 0", n)
	}
	if v := e.sched.VirtualTime(); v != v0 {
		t.Errorf("V changed: %v -> %v", v0, v)
	}
	if e.fetcher.calls != 0 {
		t.Errorf("fetcher was called %d times for an unsupported URL", e.fetcher.calls)
	}
}

func TestRemoteVoteAndWeights(t *testing.T) {
	e := newTestEnv(t, Config{})
	ctx := context.Background()
	url := "https://www.youtube.com/watch?v=abc"

	queue, err := e.sched.Vote(ctx, "u1", domain.ItemRef{VideoURL: url})
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if len(queue) != 1 || queue[0].Item.Kind != domain.KindRemote {
		t.Fatalf("unexpected queue: %+v", queue)
	}
	if queue[0].Item.Title != "Some Video" || !almostEqual(queue[0].Item.Length, 120) {
		t.Errorf("remote metadata not applied: %+v", queue[0].Item)
	}
	finish := e.finishTimes(t)
	if !almostEqual(finish[url], 120) {
		t.Errorf("finish = %v, want 120", finish[url])
	}

	if _, err := e.sched.Vote(ctx, "u2", domain.ItemRef{VideoURL: url}); err != nil {
		t.Fatalf("u2 vote: %v", err)
	}
	finish = e.finishTimes(t)
	if !almostEqual(finish[url], 60) {
		t.Errorf("finish after second vote = %v, want 60", finish[url])
	}
	// Metadata was cached on the packet; no refetch for the second vote.
	if e.fetcher.calls != 1 {
		t.Errorf("fetcher calls = %d, want 1", e.fetcher.calls)
	}
}

func TestLookupFailureLeavesNoState(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.fetcher.err = errors.New("quota exceeded")
	ctx := context.Background()

	_, err := e.sched.Vote(ctx, "u1", domain.ItemRef{VideoURL: "https://www.youtube.com/watch?v=abc"})
	if !errors.Is(err, domain.ErrLookupFailed) {
		t.Fatalf("err = %v, want ErrLookupFailed", err)
	}
	if n, _ := e.sched.NumQueued(ctx); n != 0 {
		t.Errorf("numQueued = %d, want 0", n)
	}
	if !e.sched.Empty() {
		t.Error("scheduler should be empty")
	}
}

func TestInvalidArgumentRejected(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	cases := []domain.ItemRef{
		{},
		{SongID: "a", VideoURL: "https://www.youtube.com/watch?v=abc"},
	}
	for _, ref := range cases {
		if _, err := e.sched.Vote(ctx, "u1", ref); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Vote(%+v): err = %v, want ErrInvalidArgument", ref, err)
		}
	}
	if _, err := e.sched.Vote(ctx, "", domain.ItemRef{SongID: "a"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("empty user: err = %v, want ErrInvalidArgument", err)
	}
}

func TestVoteThenRemoveRestoresStore(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: "a"}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	queue, err := e.sched.Remove(ctx, domain.ItemRef{SongID: "a"}, false)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(queue) != 0 {
		t.Errorf("queue = %v, want empty", queue)
	}
	if n, _ := e.sched.NumQueued(ctx); n != 0 {
		t.Errorf("numQueued = %d, want 0", n)
	}
	if !e.sched.Empty() {
		t.Error("active sessions should be zero")
	}

	// Re-voting re-enqueues with no memory of the previous arrival.
	if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: "a"}); err != nil {
		t.Fatalf("revote: %v", err)
	}
	if n, _ := e.sched.NumQueued(ctx); n != 1 {
		t.Errorf("numQueued = %d, want 1", n)
	}
}

func TestRemoveMissingPacket(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	if _, err := e.sched.Remove(context.Background(), domain.ItemRef{SongID: "a"}, false); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClearStopsPlayerAndEmptiesQueue(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: id}); err != nil {
			t.Fatalf("vote %s: %v", id, err)
		}
	}
	if _, err := e.sched.Advance(ctx, false); err != nil {
		t.Fatalf("advance: %v", err)
	}

	queue, err := e.sched.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(queue) != 0 {
		t.Errorf("queue = %v, want empty", queue)
	}
	if !e.sched.Empty() {
		t.Error("scheduler should be empty after clear")
	}
	if e.player.stops == 0 {
		t.Error("player was not stopped")
	}
}

func TestQueueRotatesNowPlayingToFront(t *testing.T) {
	e := newTestEnv(t, Config{}, song("a", 10), song("b", 5))
	ctx := context.Background()

	if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: "a"}); err != nil {
		t.Fatalf("vote a: %v", err)
	}
	if _, err := e.sched.Advance(ctx, false); err != nil {
		t.Fatalf("advance: %v", err)
	}
	// b finishes earlier than a, so without rotation it would sort first.
	if _, err := e.sched.Vote(ctx, "u2", domain.ItemRef{SongID: "b"}); err != nil {
		t.Fatalf("vote b: %v", err)
	}

	queue, err := e.sched.Queue(ctx, "")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("queue length = %d, want 2", len(queue))
	}
	if queue[0].Item.SongID != "a" || queue[1].Item.SongID != "b" {
		t.Errorf("rotation wrong: got %s,%s want a,b", queue[0].Item.SongID, queue[1].Item.SongID)
	}

	// Queue is observation only: asking twice changes nothing.
	again, err := e.sched.Queue(ctx, "")
	if err != nil {
		t.Fatalf("queue again: %v", err)
	}
	if len(again) != 2 || again[0].Item.SongID != "a" {
		t.Errorf("second queue differs: %+v", again)
	}
}

func TestAdvanceSkipsAlreadyRemovedNowPlaying(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: id}); err != nil {
			t.Fatalf("vote %s: %v", id, err)
		}
	}
	if _, err := e.sched.Advance(ctx, false); err != nil {
		t.Fatalf("advance: %v", err)
	}
	// Someone removes the playing packet directly; the next advance must
	// treat its retirement as a no-op and still play b.
	if _, err := e.sched.Remove(ctx, domain.ItemRef{SongID: "a"}, false); err != nil {
		t.Fatalf("remove: %v", err)
	}
	item, err := e.sched.Advance(ctx, false)
	if err != nil {
		t.Fatalf("second advance: %v", err)
	}
	if item == nil || item.SongID != "b" {
		t.Fatalf("advance played %+v, want song b", item)
	}
}

func TestFinishTimeInvariants(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	votes := []struct{ user, song string }{
		{"u1", "a"}, {"u2", "b"}, {"u1", "c"}, {"u3", "d"},
	}
	for _, v := range votes {
		if _, err := e.sched.Vote(ctx, v.user, domain.ItemRef{SongID: v.song}); err != nil {
			t.Fatalf("vote(%s, %s): %v", v.user, v.song, err)
		}
		// Mid-stream extra weight on u1's head packet.
		if v.song == "c" {
			if _, err := e.sched.Vote(ctx, "u9", domain.ItemRef{SongID: "a"}); err != nil {
				t.Fatalf("extra vote: %v", err)
			}
		}
	}

	pkts, err := e.store.ListPackets(ctx, testPlayer, "arrivalTime")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	last := make(map[string]float64)
	for _, p := range pkts {
		s, err := e.store.SongByID(ctx, p.SongID)
		if err != nil {
			t.Fatalf("song: %v", err)
		}
		min := p.ArrivalTime + s.Length/p.Weight()
		if p.FinishTime < min-1e-9 {
			t.Errorf("packet %s: finish %v < arrival+length/weight %v", p.SongID, p.FinishTime, min)
		}
		base := p.ArrivalTime
		if prev, ok := last[p.User]; ok && prev > base {
			base = prev
		}
		if want := base + s.Length/p.Weight(); !almostEqual(p.FinishTime, want) {
			t.Errorf("packet %s: finish %v, want chained %v", p.SongID, p.FinishTime, want)
		}
		last[p.User] = p.FinishTime
	}
}

func TestVirtualTimeResumesFromMaxArrival(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: "a"}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	for i := 0; i < 8; i++ {
		e.sched.Tick(DefaultTickInterval)
	}
	if _, err := e.sched.Vote(ctx, "u2", domain.ItemRef{SongID: "b"}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	v := e.sched.VirtualTime()

	// A fresh scheduler over the same store resumes at the latest arrival.
	restarted, err := New(ctx, Config{PlayerName: testPlayer}, Deps{
		Packets: e.store, Songs: e.store, History: e.store,
		Player: &fakePlayer{}, Fetcher: e.fetcher,
	})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := restarted.VirtualTime(); !almostEqual(got, v) {
		t.Errorf("restarted V = %v, want %v", got, v)
	}
	if restarted.ActiveSessions() != 2 {
		t.Errorf("restarted sessions = %d, want 2", restarted.ActiveSessions())
	}
}

func TestTickOnlyAdvancesWhenBacklogged(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	e.sched.Tick(DefaultTickInterval)
	if v := e.sched.VirtualTime(); v != 0 {
		t.Fatalf("V moved on empty queue: %v", v)
	}

	if _, err := e.sched.Vote(ctx, "u1", domain.ItemRef{SongID: "a"}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := e.sched.Vote(ctx, "u2", domain.ItemRef{SongID: "b"}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	e.sched.Tick(DefaultTickInterval)
	// Two backlogged users: V elapses at half rate.
	if v := e.sched.VirtualTime(); !almostEqual(v, DefaultTickInterval.Seconds()/2) {
		t.Errorf("V = %v, want %v", v, DefaultTickInterval.Seconds()/2)
	}
}

func TestRandomFallbackRecordsHistory(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)

	item := advanceToPlay(t, e)
	entries, err := e.store.ListHistory(context.Background(), testPlayer, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history length = %d, want 1", len(entries))
	}
	if entries[0].User != domain.RandomUser {
		t.Errorf("history user = %q, want %q", entries[0].User, domain.RandomUser)
	}
	if entries[0].SongID != item.SongID {
		t.Errorf("history song = %q, want %q", entries[0].SongID, item.SongID)
	}
}

func TestQueueGaugesTrackMutations(t *testing.T) {
	e := newTestEnv(t, Config{}, fourSongs()...)
	ctx := context.Background()

	for _, v := range []struct{ user, song string }{
		{"alice", "a"}, {"bob", "b"},
	} {
		if _, err := e.sched.Vote(ctx, v.user, domain.ItemRef{SongID: v.song}); err != nil {
			t.Fatalf("vote(%s, %s): %v", v.user, v.song, err)
		}
	}

	if got := testutil.ToFloat64(metrics.QueueDepth); got != 2 {
		t.Errorf("queue depth gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.ActiveSessions); got != 2 {
		t.Errorf("active sessions gauge = %v, want 2", got)
	}

	if _, err := e.sched.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := testutil.ToFloat64(metrics.QueueDepth); got != 0 {
		t.Errorf("queue depth gauge after clear = %v, want 0", got)
	}
}

func ExampleScheduler_Vote() {
	store := memory.New(memory.WithSeed(1))
	_ = store.UpsertSong(context.Background(), domain.Song{ID: "s1", Path: "/music/s1.mp3", Title: "First", Length: 180})

	sched, _ := New(context.Background(), Config{PlayerName: "demo"}, Deps{
		Packets: store, Songs: store, History: store,
		Player: &fakePlayer{}, Fetcher: &fakeFetcher{},
	})
	queue, _ := sched.Vote(context.Background(), "alice", domain.ItemRef{SongID: "s1"})
	fmt.Println(len(queue), queue[0].Owner)
	// Output: 1 alice
}
