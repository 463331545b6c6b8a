package apihttp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"jukebox/internal/domain"
)

type voteRequest struct {
	User     string `json:"user"`
	SongID   string `json:"songId,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

type queueResponse struct {
	Queue          []domain.QueueEntry `json:"queue"`
	VirtualTime    float64             `json:"virtualTime"`
	ActiveSessions int                 `json:"activeSessions"`
}

type skipResponse struct {
	NowPlaying *domain.PlayItem    `json:"nowPlaying"`
	Queue      []domain.QueueEntry `json:"queue"`
}

func (s *Server) queuePayload(entries []domain.QueueEntry) queueResponse {
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	return queueResponse{
		Queue:          entries,
		VirtualTime:    s.queue.VirtualTime(),
		ActiveSessions: s.queue.ActiveSessions(),
	}
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	ref := domain.ItemRef{SongID: strings.TrimSpace(req.SongID), VideoURL: strings.TrimSpace(req.VideoURL)}
	entries, err := s.queue.Vote(r.Context(), strings.TrimSpace(req.User), ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcastQueue(entries)
	writeJSON(w, http.StatusOK, s.queuePayload(entries))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		viewer := strings.TrimSpace(r.URL.Query().Get("user"))
		entries, err := s.queue.Queue(r.Context(), viewer)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.queuePayload(entries))

	case http.MethodDelete:
		q := r.URL.Query()
		ref := domain.ItemRef{
			SongID:   strings.TrimSpace(q.Get("songId")),
			VideoURL: strings.TrimSpace(q.Get("videoUrl")),
		}
		skip, _ := strconv.ParseBool(q.Get("skip"))
		entries, err := s.queue.Remove(r.Context(), ref, skip)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s.broadcastQueue(entries)
		writeJSON(w, http.StatusOK, s.queuePayload(entries))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or DELETE")
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	entries, err := s.queue.Clear(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcastQueue(entries)
	writeJSON(w, http.StatusOK, s.queuePayload(entries))
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	item, err := s.queue.Advance(r.Context(), true)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	entries, err := s.queue.Queue(r.Context(), "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.broadcastQueue(entries)
	writeJSON(w, http.StatusOK, skipResponse{NowPlaying: item, Queue: entries})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "history not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.history.ListHistory(r.Context(), s.playerName, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.PlayHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	if s.library == nil {
		writeError(w, http.StatusNotFound, "not_found", "library not configured")
		return
	}
	songs, err := s.library.ListSongs(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if songs == nil {
		songs = []domain.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"activeSessions": s.queue.ActiveSessions(),
		"virtualTime":    s.queue.VirtualTime(),
	})
}
