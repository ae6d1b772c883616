package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"party-service/internal/session"
)

// POST /parties/{id}/cohosts/{userId}
func (s *Server) handlePromoteCoHost(w http.ResponseWriter, r *http.Request) {
	s.moderation(w, r, func(sess *session.Session, uid, target string) error {
		return sess.PromoteCoHost(uid, target)
	})
}

// DELETE /parties/{id}/cohosts/{userId}
func (s *Server) handleDemoteCoHost(w http.ResponseWriter, r *http.Request) {
	s.moderation(w, r, func(sess *session.Session, uid, target string) error {
		return sess.DemoteCoHost(uid, target)
	})
}

// POST /parties/{id}/kick/{userId}
func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	s.moderation(w, r, func(sess *session.Session, uid, target string) error {
		return sess.Kick(uid, target)
	})
}

// POST /parties/{id}/ban/{userId}
func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	s.moderation(w, r, func(sess *session.Session, uid, target string) error {
		return sess.Ban(uid, target)
	})
}

// handleMute toggles one user's room mute.
// POST /parties/{id}/mute/{userId}
func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
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
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := sess.SetRoomMute(uid, chi.URLParam(r, "userId"), body.Muted); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /parties/{id}/mute-all
func (s *Server) handleMuteAll(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	if err := sess.MuteAllExceptHost(uid); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /parties/{id}/unmute-all
func (s *Server) handleUnmuteAll(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	if err := sess.UnmuteAll(uid); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// moderation factors the shared caller/target/session plumbing for the
// per-user moderation routes.
func (s *Server) moderation(w http.ResponseWriter, r *http.Request, op func(sess *session.Session, uid, target string) error) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	target := chi.URLParam(r, "userId")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing target user")
		return
	}
	if err := op(sess, uid, target); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
