package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"party-service/internal/party"
	"party-service/internal/session"
)

// History is the audit-log read side, served from the durable store.
type History interface {
	HistoryForParty(ctx context.Context, partyID string) ([]party.HistoryItem, error)
}

type Server struct {
	reg     *session.Registry
	history History
	log     zerolog.Logger
}

func NewServer(reg *session.Registry, history History, log zerolog.Logger) *Server {
	return &Server{
		reg:     reg,
		history: history,
		log:     log.With().Str("component", "httpapi").Logger(),
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		for _, mw := range middlewares {
			r.Use(mw)
		}

		r.Post("/parties", s.handleCreateParty)
		r.Post("/parties/join", s.handleJoinParty)

		r.Route("/parties/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetParty)
			r.Get("/history", s.handleGetHistory)
			r.Post("/minimize", s.handleMinimize)
			r.Post("/restore", s.handleRestore)
			r.Post("/leave", s.handleLeave)
			r.Post("/end", s.handleEnd)
			r.Patch("/settings", s.handleUpdateSettings)

			r.Post("/queue", s.handleAddSong)
			r.Post("/queue/play-next", s.handlePlayNext)
			r.Delete("/queue/{index}", s.handleRemoveSong)
			r.Post("/queue/reorder", s.handleReorder)
			r.Post("/queue/shuffle", s.handleShuffle)
			r.Post("/queue/mode", s.handleQueueMode)
			r.Post("/next", s.handleSkip)

			r.Post("/cohosts/{userId}", s.handlePromoteCoHost)
			r.Delete("/cohosts/{userId}", s.handleDemoteCoHost)
			r.Post("/kick/{userId}", s.handleKick)
			r.Post("/ban/{userId}", s.handleBan)
			r.Post("/mute/{userId}", s.handleMute)
			r.Post("/mute-all", s.handleMuteAll)
			r.Post("/unmute-all", s.handleUnmuteAll)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "party-service",
	})
}

// liveSession resolves the session for the id route param, or writes the
// not-found signal.
func (s *Server) liveSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.reg.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "party not found")
		return nil, false
	}
	return sess, true
}
