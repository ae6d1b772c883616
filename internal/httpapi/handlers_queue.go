package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"party-service/internal/party"
)

// handleAddSong appends a track, optionally carrying playlist provenance
// so queue-mode changes can regenerate without re-fetching.
// POST /parties/{id}/queue
func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var body struct {
		Track         party.Track   `json:"track"`
		PlaylistID    string        `json:"playlistId"`
		PlaylistSongs []party.Track `json:"playlistSongs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "missing track id")
		return
	}

	if err := sess.AddSong(uid, body.Track, body.PlaylistID, body.PlaylistSongs); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handlePlayNext inserts tracks at the queue head in the given order.
// POST /parties/{id}/queue/play-next
func (s *Server) handlePlayNext(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var body struct {
		Tracks []party.Track `json:"tracks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Tracks) == 0 {
		writeError(w, http.StatusBadRequest, "missing tracks")
		return
	}

	if err := sess.PlayNext(uid, body.Tracks); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleRemoveSong drops one queue entry. A stale index is not an error.
// DELETE /parties/{id}/queue/{index}
func (s *Server) handleRemoveSong(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}

	if err := sess.RemoveSong(uid, index); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /parties/{id}/queue/reorder
func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var body struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := sess.MoveSong(uid, body.From, body.To); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /parties/{id}/queue/shuffle
func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := sess.SetShuffle(uid, body.Enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /parties/{id}/queue/mode
func (s *Server) handleQueueMode(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	switch party.QueueMode(body.Mode) {
	case party.QueueModeManual, party.QueueModeArtistMix, party.QueueModeGenreMix:
	default:
		writeError(w, http.StatusBadRequest, "invalid queue mode")
		return
	}

	if err := sess.SetQueueMode(uid, party.QueueMode(body.Mode)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSkip advances playback to the next queued track.
// POST /parties/{id}/next
func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	if err := sess.Skip(uid); err != nil {
		writeDomainError(w, err)
		return
	}
	p, _ := sess.Snapshot()
	var current *party.Track
	if p != nil {
		current = p.CurrentSong
	}
	writeJSON(w, http.StatusOK, map[string]any{"currentSong": current})
}
