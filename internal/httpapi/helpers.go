package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"party-service/internal/party"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeDomainError maps coordinator errors onto distinct outward signals.
// Authorization and admission failures each get their own message so the
// client can show something specific, never a generic failure.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, party.ErrQueueDenied):
		writeError(w, http.StatusForbidden, "queue permission denied")
	case errors.Is(err, party.ErrNotHost):
		writeError(w, http.StatusForbidden, "host only")
	case errors.Is(err, party.ErrNotModerator):
		writeError(w, http.StatusForbidden, "host or co-host only")
	case errors.Is(err, party.ErrFriendsOnly):
		writeError(w, http.StatusForbidden, "friends-only party")
	case errors.Is(err, party.ErrBanned):
		writeError(w, http.StatusForbidden, "banned from party")
	case errors.Is(err, party.ErrPartyNotFound), errors.Is(err, party.ErrNoParty):
		writeError(w, http.StatusNotFound, "party not found")
	case errors.Is(err, party.ErrPartyEnded):
		writeError(w, http.StatusGone, "party has ended")
	case errors.Is(err, party.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "operation timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
