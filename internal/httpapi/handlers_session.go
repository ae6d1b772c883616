package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"party-service/internal/party"
	"party-service/internal/session"
)

// handleCreateParty starts a new party with the caller as host.
// POST /parties
func (s *Server) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Name           string `json:"name"`
		AdmissionMode  string `json:"admissionMode"`
		WhoCanAddSongs string `json:"whoCanAddSongs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "missing party name")
		return
	}

	p, err := s.reg.Create(r.Context(), session.CreateParams{
		Name:           body.Name,
		HostID:         uid,
		HostName:       userName(r),
		AdmissionMode:  party.AdmissionMode(body.AdmissionMode),
		WhoCanAddSongs: party.AddPolicy(body.WhoCanAddSongs),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("create party")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleJoinParty admits the caller by party id or access code. "Code not
// found" and "friends-only denied" are distinct responses.
// POST /parties/join
func (s *Server) handleJoinParty(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		PartyID    string `json:"partyId"`
		AccessCode string `json:"accessCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.reg.Join(r.Context(), session.JoinParams{
		UserID:     uid,
		UserName:   userName(r),
		PartyID:    body.PartyID,
		AccessCode: body.AccessCode,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleGetParty returns a snapshot of the live party.
// GET /parties/{id}
func (s *Server) handleGetParty(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	p, state := sess.Snapshot()
	if p == nil {
		writeError(w, http.StatusNotFound, "party not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"party":           p,
		"connectionState": state,
	})
}

// handleGetHistory serves the durable play-history audit log, which
// outlives the live session.
// GET /parties/{id}/history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	items, err := s.history.HistoryForParty(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("partyId", id).Msg("load history")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// POST /parties/{id}/minimize
func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	if !sess.Minimize() {
		writeError(w, http.StatusConflict, "party is not active")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": party.StateMinimized})
}

// POST /parties/{id}/restore
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	if !sess.Restore() {
		writeError(w, http.StatusConflict, "party is not minimized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": party.StateActive})
}

// POST /parties/{id}/leave
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if err := s.reg.Leave(r.Context(), chi.URLParam(r, "id"), uid); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleEnd ends the party for everyone. Host-only, enforced here at the
// boundary rather than in the lifecycle layer.
// POST /parties/{id}/end
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	p, _ := sess.Snapshot()
	if p == nil {
		writeError(w, http.StatusNotFound, "party not found")
		return
	}
	if p.HostID != uid {
		writeDomainError(w, party.ErrNotHost)
		return
	}
	if err := s.reg.End(r.Context(), p.ID, uid); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// PATCH /parties/{id}/settings
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
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
		AdmissionMode  *string `json:"admissionMode"`
		WhoCanAddSongs *string `json:"whoCanAddSongs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var admission *party.AdmissionMode
	if body.AdmissionMode != nil {
		m := party.AdmissionMode(*body.AdmissionMode)
		admission = &m
	}
	var policy *party.AddPolicy
	if body.WhoCanAddSongs != nil {
		p := party.AddPolicy(*body.WhoCanAddSongs)
		policy = &p
	}

	if err := sess.UpdateSettings(uid, admission, policy); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
