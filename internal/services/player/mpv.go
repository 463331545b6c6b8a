// Package player adapts playback devices to the scheduler. The mpv adapter
// shells out to the mpv binary, which plays local files and streaming URLs
// alike.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"jukebox/internal/domain"
)

// MPV drives one mpv process at a time. A finished item stays visible
// through NowPlaying until the next Play or Stop, so callers can observe
// what just ended.
type MPV struct {
	binary string
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	current *domain.PlayItem
	ended   bool
	gen     int
}

func NewMPV(binary string, logger *slog.Logger) *MPV {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "mpv"
	}
	return &MPV{binary: bin, logger: logger}
}

func (m *MPV) Play(ctx context.Context, item domain.PlayItem) error {
	target := item.Path
	if item.Kind == domain.KindRemote {
		target = item.URL
	}
	if target == "" {
		return fmt.Errorf("%w: item has no playable target", domain.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	cmd := exec.Command(m.binary, "--no-video", "--really-quiet", "--", target)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", m.binary, err)
	}

	itemCopy := item
	m.cmd = cmd
	m.current = &itemCopy
	m.ended = false
	m.gen++
	gen := m.gen

	m.logger.Info("playback started", "title", item.Title, "kind", item.Kind, "length", item.Length)

	go func() {
		err := cmd.Wait()
		m.mu.Lock()
		defer m.mu.Unlock()
		// A newer Play or Stop already superseded this process.
		if m.gen != gen {
			return
		}
		m.ended = true
		m.cmd = nil
		if err != nil {
			m.logger.Warn("mpv exited with error", "title", itemCopy.Title, "error", err)
			return
		}
		m.logger.Info("playback finished", "title", itemCopy.Title)
	}()
	return nil
}

func (m *MPV) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.current = nil
	m.ended = false
}

func (m *MPV) stopLocked() {
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
	}
	m.cmd = nil
	m.gen++
}

func (m *MPV) HasEnded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == nil || m.ended
}

func (m *MPV) NowPlaying() (domain.PlayItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return domain.PlayItem{}, false
	}
	return *m.current, true
}
