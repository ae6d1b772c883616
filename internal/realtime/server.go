package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"party-service/internal/party"
)

const broadcastChannel = "broadcast"

// Server pushes session events to party members over websockets. Events
// travel through Redis pub/sub so members connected to other instances see
// them too.
type Server struct {
	hub           *Hub
	rdb           *redis.Client
	log           zerolog.Logger
	allowedOrigin string
	upgrader      websocket.Upgrader
}

func NewServer(hub *Hub, rdb *redis.Client, allowedOrigin string, log zerolog.Logger) *Server {
	s := &Server{
		hub:           hub,
		rdb:           rdb,
		log:           log.With().Str("component", "realtime").Logger(),
		allowedOrigin: allowedOrigin,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if s.allowedOrigin == "" || s.allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == s.allowedOrigin
		},
	}
	return s
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.Get("/ws/{partyId}", s.handleWS)
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	partyID := chi.URLParam(r, "partyId")
	if partyID == "" {
		http.Error(w, "missing party id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	client := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		partyID: partyID,
		userID:  r.Header.Get("X-User-Id"),
	}
	s.hub.register <- client

	welcome := map[string]any{
		"type":    "welcome",
		"partyId": partyID,
		"now":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}

	go client.writePump()
	go client.readPump()
}

// RunEventBridge publishes session events onto the shared broadcast
// channel until ctx is cancelled.
func (s *Server) RunEventBridge(ctx context.Context, events <-chan party.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Warn().Err(err).Msg("marshal event")
				continue
			}
			if err := s.rdb.Publish(ctx, broadcastChannel, string(data)).Err(); err != nil {
				s.log.Warn().Err(err).Msg("publish event")
				// Local members still get it even when the publish fails.
				s.hub.Broadcast(ev.PartyID, data)
			}
		}
	}
}

// RunRedisSubscriber routes broadcast-channel messages into the party
// rooms on this instance.
func (s *Server) RunRedisSubscriber(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, broadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope struct {
				PartyID string `json:"partyId"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil || envelope.PartyID == "" {
				continue
			}
			s.hub.Broadcast(envelope.PartyID, []byte(msg.Payload))
		}
	}
}
