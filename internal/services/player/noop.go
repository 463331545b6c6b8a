package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"jukebox/internal/domain"
)

// Noop simulates playback without touching any audio device. Items "end"
// after their real duration elapses, which keeps queue pacing honest when
// no player binary is installed.
type Noop struct {
	logger *slog.Logger

	mu      sync.Mutex
	current *domain.PlayItem
	ended   bool
	timer   *time.Timer
	gen     int
}

func NewNoop(logger *slog.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) Play(_ context.Context, item domain.PlayItem) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopLocked()

	itemCopy := item
	n.current = &itemCopy
	n.ended = false
	n.gen++
	gen := n.gen

	n.logger.Info("simulated playback started", "title", item.Title, "length", item.Length)

	d := time.Duration(item.Length * float64(time.Second))
	if d <= 0 {
		d = time.Second
	}
	n.timer = time.AfterFunc(d, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.gen != gen {
			return
		}
		n.ended = true
		n.logger.Info("simulated playback finished", "title", itemCopy.Title)
	})
	return nil
}

func (n *Noop) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.current = nil
	n.ended = false
}

func (n *Noop) stopLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
}

func (n *Noop) HasEnded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current == nil || n.ended
}

func (n *Noop) NowPlaying() (domain.PlayItem, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return domain.PlayItem{}, false
	}
	return *n.current, true
}
