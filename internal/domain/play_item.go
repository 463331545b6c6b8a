package domain

// PlayItem is the tagged variant handed to the player: a library song or a
// remote video. Exactly the fields for the active kind are set.
type PlayItem struct {
	Kind   Kind    `json:"kind"`
	SongID string  `json:"songId,omitempty"`
	Path   string  `json:"path,omitempty"`
	URL    string  `json:"url,omitempty"`
	Title  string  `json:"title"`
	Artist string  `json:"artist,omitempty"`
	Length float64 `json:"length"`
}

func LocalItem(s Song) PlayItem {
	return PlayItem{
		Kind:   KindLocal,
		SongID: s.ID,
		Path:   s.Path,
		Title:  s.Title,
		Artist: s.Artist,
		Length: s.Length,
	}
}

func RemoteItem(p Packet) PlayItem {
	return PlayItem{
		Kind:   KindRemote,
		URL:    p.VideoURL,
		Title:  p.VideoTitle,
		Length: p.VideoLength,
	}
}

// SameItem reports whether two items refer to the same underlying media,
// matched by (kind, key) rather than by full equality.
func SameItem(a, b PlayItem) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindRemote {
		return a.URL == b.URL
	}
	return a.SongID == b.SongID
}

// QueueEntry is one row of the rendered queue: the playable item plus its
// packet annotations for a given viewer.
type QueueEntry struct {
	Item     PlayItem `json:"item"`
	NumVotes int      `json:"numVotes"`
	Owner    string   `json:"owner"`
	HasVoted bool     `json:"hasVoted"`
}
