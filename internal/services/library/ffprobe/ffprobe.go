// Package ffprobe shells out to the ffprobe binary to read audio metadata.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// TrackInfo is the subset of audio metadata the library needs.
type TrackInfo struct {
	Title    string
	Artist   string
	Duration float64
}

type Prober struct {
	binary string
}

func New(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

const maxProbeTimeout = 30 * time.Second

func (p *Prober) Probe(ctx context.Context, filePath string) (TrackInfo, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return TrackInfo{}, errors.New("file path is required")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return TrackInfo{}, fmt.Errorf("ffprobe failed: %w", err)
		}
		return TrackInfo{}, fmt.Errorf("ffprobe failed: %w: %s", err, msg)
	}

	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return TrackInfo{}, fmt.Errorf("ffprobe output parse failed: %w", err)
	}
	return info, nil
}

// probePayload is the subset of ffprobe JSON output we parse.
type probePayload struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (TrackInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return TrackInfo{}, err
	}

	var duration float64
	if payload.Format.Duration != "" {
		if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
			duration = d
		}
	}
	if duration <= 0 {
		return TrackInfo{}, errors.New("no duration in format section")
	}

	return TrackInfo{
		Title:    strings.TrimSpace(getTag(payload.Format.Tags, "title")),
		Artist:   strings.TrimSpace(getTag(payload.Format.Tags, "artist")),
		Duration: duration,
	}, nil
}

func getTag(tags map[string]string, key string) string {
	if len(tags) == 0 {
		return ""
	}
	if value, ok := tags[key]; ok {
		return value
	}
	if value, ok := tags[strings.ToUpper(key)]; ok {
		return value
	}
	if value, ok := tags[strings.ToLower(key)]; ok {
		return value
	}
	return ""
}
