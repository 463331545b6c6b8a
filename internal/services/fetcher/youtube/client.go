// Package youtube resolves video metadata through the YouTube Data API v3,
// with a persistent bolt-backed cache in front of it.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"jukebox/internal/domain"
	"jukebox/internal/metrics"
)

const apiEndpoint = "https://www.googleapis.com/youtube/v3/videos"

var videoIDRegex = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)

var supportedHosts = map[string]struct{}{
	"youtube.com":     {},
	"www.youtube.com": {},
	"youtu.be":        {},
}

// ExtractID pulls the 11-character video id out of a watch or short URL.
func ExtractID(rawURL string) string {
	if matches := videoIDRegex.FindStringSubmatch(rawURL); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
	cache    *Cache
	logger   *slog.Logger
}

type Option func(*Client)

// WithEndpoint overrides the API base URL, used by tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func NewClient(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: apiEndpoint,
		http:     &http.Client{Timeout: 20 * time.Second},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supports reports whether the URL points at a known YouTube host and
// carries a parseable video id. It never touches the network.
func (c *Client) Supports(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if _, ok := supportedHosts[u.Hostname()]; !ok {
		return false
	}
	return ExtractID(rawURL) != ""
}

// Fetch resolves the title and length of a video. Every failure mode maps
// to ErrLookupFailed so callers can treat lookups uniformly.
func (c *Client) Fetch(ctx context.Context, rawURL string) (domain.VideoDetails, error) {
	id := ExtractID(rawURL)
	if id == "" {
		return domain.VideoDetails{}, fmt.Errorf("%w: no video id in %q", domain.ErrLookupFailed, rawURL)
	}

	if c.cache != nil {
		if e, ok := c.cache.get(id); ok {
			metrics.MetadataLookupsTotal.WithLabelValues("cache").Inc()
			return domain.VideoDetails{Title: e.Title, Length: e.Length}, nil
		}
	}

	details, err := c.lookup(ctx, id)
	if err != nil {
		metrics.MetadataLookupsTotal.WithLabelValues("error").Inc()
		return domain.VideoDetails{}, err
	}
	metrics.MetadataLookupsTotal.WithLabelValues("api").Inc()

	if c.cache != nil {
		c.cache.set(id, cacheEntry{Title: details.Title, Length: details.Length})
	}
	return details, nil
}

func (c *Client) lookup(ctx context.Context, id string) (domain.VideoDetails, error) {
	if c.apiKey == "" {
		return domain.VideoDetails{}, fmt.Errorf("%w: API key not configured", domain.ErrLookupFailed)
	}

	reqURL := fmt.Sprintf("%s?part=snippet,contentDetails&id=%s&key=%s", c.endpoint, id, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.VideoDetails{}, fmt.Errorf("%w: %v", domain.ErrLookupFailed, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.VideoDetails{}, fmt.Errorf("%w: %v", domain.ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.VideoDetails{}, fmt.Errorf("%w: API returned status %d", domain.ErrLookupFailed, resp.StatusCode)
	}

	var apiResp struct {
		Items []struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return domain.VideoDetails{}, fmt.Errorf("%w: decode response: %v", domain.ErrLookupFailed, err)
	}
	if len(apiResp.Items) == 0 {
		return domain.VideoDetails{}, fmt.Errorf("%w: video %s not found", domain.ErrLookupFailed, id)
	}

	item := apiResp.Items[0]
	length, err := parseDuration(item.ContentDetails.Duration)
	if err != nil {
		return domain.VideoDetails{}, fmt.Errorf("%w: duration %q: %v", domain.ErrLookupFailed, item.ContentDetails.Duration, err)
	}
	if length <= 0 {
		return domain.VideoDetails{}, fmt.Errorf("%w: video %s has no duration", domain.ErrLookupFailed, id)
	}
	if c.logger != nil {
		c.logger.Debug("resolved video metadata", "id", id, "title", item.Snippet.Title, "length", length)
	}
	return domain.VideoDetails{Title: item.Snippet.Title, Length: length}, nil
}

var durationRegex = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

func parseDuration(iso string) (float64, error) {
	matches := durationRegex.FindStringSubmatch(iso)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid ISO-8601 duration")
	}
	h, m, s := 0, 0, 0
	if matches[1] != "" {
		h, _ = strconv.Atoi(matches[1])
	}
	if matches[2] != "" {
		m, _ = strconv.Atoi(matches[2])
	}
	if matches[3] != "" {
		s, _ = strconv.Atoi(matches[3])
	}
	return float64(h*3600 + m*60 + s), nil
}
