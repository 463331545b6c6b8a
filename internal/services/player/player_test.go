package player

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"jukebox/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNoopLifecycle(t *testing.T) {
	p := NewNoop(testLogger())

	if !p.HasEnded() {
		t.Error("fresh player should be idle")
	}
	if _, ok := p.NowPlaying(); ok {
		t.Error("fresh player should have nothing playing")
	}

	item := domain.PlayItem{Kind: domain.KindLocal, SongID: "s1", Path: "/music/a.mp3", Title: "A", Length: 0.02}
	if err := p.Play(context.Background(), item); err != nil {
		t.Fatalf("play: %v", err)
	}

	if p.HasEnded() {
		t.Error("player should be busy right after Play")
	}
	got, ok := p.NowPlaying()
	if !ok || got.SongID != "s1" {
		t.Errorf("now playing = %+v, ok=%v", got, ok)
	}

	deadline := time.After(2 * time.Second)
	for !p.HasEnded() {
		select {
		case <-deadline:
			t.Fatal("item never ended")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The finished item stays visible until someone retires it.
	if _, ok := p.NowPlaying(); !ok {
		t.Error("finished item should remain visible")
	}

	p.Stop()
	if _, ok := p.NowPlaying(); ok {
		t.Error("stopped player should have nothing playing")
	}
	if !p.HasEnded() {
		t.Error("stopped player should be idle")
	}
}

func TestNoopPlayReplacesCurrent(t *testing.T) {
	p := NewNoop(testLogger())
	ctx := context.Background()

	first := domain.PlayItem{Kind: domain.KindLocal, SongID: "s1", Path: "/music/a.mp3", Length: 0.01}
	second := domain.PlayItem{Kind: domain.KindLocal, SongID: "s2", Path: "/music/b.mp3", Length: 60}

	if err := p.Play(ctx, first); err != nil {
		t.Fatalf("play first: %v", err)
	}
	if err := p.Play(ctx, second); err != nil {
		t.Fatalf("play second: %v", err)
	}

	// The first item's timer must not mark the second item as ended.
	time.Sleep(50 * time.Millisecond)
	if p.HasEnded() {
		t.Error("second item marked ended by stale timer")
	}
	got, _ := p.NowPlaying()
	if got.SongID != "s2" {
		t.Errorf("now playing = %q, want s2", got.SongID)
	}
}

func TestMPVRejectsItemWithoutTarget(t *testing.T) {
	p := NewMPV("mpv", testLogger())
	err := p.Play(context.Background(), domain.PlayItem{Kind: domain.KindLocal, Title: "empty"})
	if err == nil {
		t.Fatal("expected error for item without path")
	}
}

func TestMPVStartFailureLeavesPlayerIdle(t *testing.T) {
	p := NewMPV("/nonexistent/mpv-binary", testLogger())
	err := p.Play(context.Background(), domain.PlayItem{Kind: domain.KindLocal, SongID: "s", Path: "/music/a.mp3"})
	if err == nil {
		t.Fatal("expected start error")
	}
	if !p.HasEnded() {
		t.Error("player should stay idle after failed start")
	}
	if _, ok := p.NowPlaying(); ok {
		t.Error("nothing should be playing after failed start")
	}
}
