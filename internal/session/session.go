// Package session hosts the party coordinators: one single-writer actor
// per live party owning the mutable aggregate. UI-facing handlers send
// commands in; typed events come out. Remote updates are applied on the
// same actor, so there is never a concurrent writer to the in-memory
// party.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"party-service/internal/party"
	"party-service/internal/partydoc"
	"party-service/internal/persist"
	"party-service/internal/player"
	"party-service/internal/remote"
)

// Audit receives played tracks for the durable history log. Append errors
// are logged and dropped; the in-memory history stays authoritative for
// the session.
type Audit interface {
	AppendHistory(ctx context.Context, partyID string, item party.HistoryItem) error
}

// Session is the coordinator for one party. All state mutation runs on the
// actor goroutine; public methods post closures and wait for them, so they
// look synchronous to callers while mutations stay serialized.
type Session struct {
	log    zerolog.Logger
	party  *party.Party
	state  party.ConnectionState
	writer *persist.Writer
	store  remote.DocumentStore
	origin string
	driver player.Driver
	voice  player.VoiceChat
	audit  Audit
	events chan<- party.Event
	rng    *rand.Rand

	cmds      chan func()
	closed    chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
}

func newSession(p *party.Party, deps Deps, events chan<- party.Event) *Session {
	return &Session{
		log:    deps.Log.With().Str("component", "session").Str("partyId", p.ID).Logger(),
		party:  p,
		state:  party.StateActive,
		writer: persist.NewWriter(deps.Store, p.ID, deps.Log),
		store:  deps.Store,
		origin: deps.Origin,
		driver: deps.NewDriver(p.ID),
		voice:  deps.NewVoice(p.ID),
		audit:  deps.Audit,
		events: events,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cmds:   make(chan func()),
		closed: make(chan struct{}),
	}
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.closed:
			for {
				select {
				case fn := <-s.cmds:
					fn()
				default:
					return
				}
			}
		}
	}
}

// do runs fn on the actor goroutine and waits for it. Returns ErrNoParty
// once the session is closed.
func (s *Session) do(fn func()) error {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
		<-done
		return nil
	case <-s.closed:
		return party.ErrNoParty
	}
}

// Snapshot returns a deep copy of the party and the connection state.
func (s *Session) Snapshot() (*party.Party, party.ConnectionState) {
	var p *party.Party
	var st party.ConnectionState
	if err := s.do(func() {
		p = s.party.Clone()
		st = s.state
	}); err != nil {
		return nil, party.StateDisconnected
	}
	return p, st
}

// emit fans an event out without ever blocking the actor. A full events
// channel drops the event; clients resync from the next snapshot.
func (s *Session) emit(kind party.EventKind, payload any) {
	ev := party.Event{Kind: kind, PartyID: s.party.ID, Payload: payload}
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Str("kind", string(kind)).Msg("event channel full, dropped")
	}
}

// persistQueue schedules a debounced queue write for the current state.
func (s *Session) persistQueue() {
	s.writer.QueueChanged(partydoc.QueueSnapshot(s.party))
}

func (s *Session) auditHistory(item party.HistoryItem) {
	if s.audit == nil {
		return
	}
	partyID := s.party.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.AppendHistory(ctx, partyID, item); err != nil {
			s.log.Warn().Err(err).Msg("history audit write failed")
		}
	}()
}

// startTrack promotes song to the playing slot on the driver, records the
// playback start in history and announces it.
func (s *Session) startTrack(song party.Track, startedBy, startedByName string) {
	s.driver.Play(song)
	s.driver.SetQueue(s.party.MusicQueue)
	s.emit(party.EventTrackStarted, map[string]any{
		"song":      song,
		"startedBy": startedBy,
	})
	item := s.party.AddToHistory(song, startedBy, startedByName, 0, false)
	s.auditHistory(item)
}

// AddSong appends a track to the queue, subject to the add policy. The
// first track added to an idle party starts playing immediately.
func (s *Session) AddSong(userID string, track party.Track, playlistID string, playlistSongs []party.Track) error {
	var opErr error
	err := s.do(func() {
		if !s.party.CanAddSongs(userID) {
			s.emit(party.EventQueueDenied, map[string]any{"userId": userID})
			opErr = party.ErrQueueDenied
			return
		}
		track.AddedBy = userID
		promoted := s.party.AppendSong(track, playlistID, playlistSongs)
		if promoted {
			name := s.displayName(userID)
			s.startTrack(track, userID, name)
		} else {
			s.driver.SetQueue(s.party.MusicQueue)
		}
		s.persistQueue()
		s.emit(party.EventQueueChanged, s.queuePayload())
	})
	if err != nil {
		return err
	}
	return opErr
}

// PlayNext inserts tracks at the head of the queue in the given order.
func (s *Session) PlayNext(userID string, tracks []party.Track) error {
	var opErr error
	err := s.do(func() {
		if !s.party.CanAddSongs(userID) {
			s.emit(party.EventQueueDenied, map[string]any{"userId": userID})
			opErr = party.ErrQueueDenied
			return
		}
		for i := range tracks {
			tracks[i].AddedBy = userID
		}
		s.party.PlaySongsNext(tracks)
		s.driver.SetQueue(s.party.MusicQueue)
		s.persistQueue()
		s.emit(party.EventQueueChanged, s.queuePayload())
	})
	if err != nil {
		return err
	}
	return opErr
}

// RemoveSong drops the track at index. Stale indices no-op.
func (s *Session) RemoveSong(userID string, index int) error {
	var opErr error
	err := s.do(func() {
		if !s.party.CanAddSongs(userID) {
			opErr = party.ErrQueueDenied
			return
		}
		if s.party.RemoveSong(index) {
			s.driver.SetQueue(s.party.MusicQueue)
			s.persistQueue()
			s.emit(party.EventQueueChanged, s.queuePayload())
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// MoveSong reorders the queue. Stale indices no-op.
func (s *Session) MoveSong(userID string, from, to int) error {
	var opErr error
	err := s.do(func() {
		if !s.party.CanAddSongs(userID) {
			opErr = party.ErrQueueDenied
			return
		}
		if s.party.MoveSong(from, to) {
			s.driver.SetQueue(s.party.MusicQueue)
			s.persistQueue()
			s.emit(party.EventQueueChanged, s.queuePayload())
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// SetShuffle turns shuffle on or off.
func (s *Session) SetShuffle(userID string, enabled bool) error {
	var opErr error
	err := s.do(func() {
		if !s.party.CanAddSongs(userID) {
			opErr = party.ErrQueueDenied
			return
		}
		if enabled {
			s.party.ShuffleQueue(s.rng)
		} else {
			s.party.UnshuffleQueue()
		}
		s.driver.SetQueue(s.party.MusicQueue)
		s.persistQueue()
		s.emit(party.EventQueueChanged, s.queuePayload())
	})
	if err != nil {
		return err
	}
	return opErr
}

// SetQueueMode switches the auto-queue strategy, regenerating the queue
// from the source playlist when one is known.
func (s *Session) SetQueueMode(userID string, mode party.QueueMode) error {
	var opErr error
	err := s.do(func() {
		if !s.party.CanAddSongs(userID) {
			opErr = party.ErrQueueDenied
			return
		}
		if s.party.SetQueueMode(mode) {
			s.driver.SetQueue(s.party.MusicQueue)
		}
		s.persistQueue()
		s.emit(party.EventQueueChanged, s.queuePayload())
	})
	if err != nil {
		return err
	}
	return opErr
}

// Skip advances to the next queued track, recording the skipped one.
func (s *Session) Skip(userID string) error {
	var opErr error
	err := s.do(func() {
		if !s.party.CanAddSongs(userID) {
			opErr = party.ErrQueueDenied
			return
		}
		s.advance(userID, s.displayName(userID), false)
	})
	if err != nil {
		return err
	}
	return opErr
}

// advance runs the queue engine's AdvanceQueue and drives the player.
// finished reports whether the previous track ended naturally. Two history
// records come out of an advance: the previous song's completion (written
// by the engine) and the next song's playback start.
func (s *Session) advance(byID, byName string, finished bool) {
	playedMs := s.driver.CurrentTimeMs()
	next := s.party.AdvanceQueue(byID, byName, playedMs, finished)
	if next == nil {
		// Empty queue: leave the current song in place, per the engine's
		// no-op contract.
		return
	}
	if n := len(s.party.QueueHistory); n > 0 {
		s.auditHistory(s.party.QueueHistory[n-1])
	}
	s.startTrack(*next, byID, byName)
	s.persistQueue()
	s.emit(party.EventQueueChanged, s.queuePayload())
}

// runPlayerLoop consumes the driver's track-finished events and advances
// the queue on the actor. Natural advances are attributed to the host.
func (s *Session) runPlayerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		case _, ok := <-s.driver.Finished():
			if !ok {
				return
			}
			_ = s.do(func() {
				s.advance(s.party.HostID, s.party.HostName, true)
			})
		}
	}
}

func (s *Session) displayName(userID string) string {
	if m, ok := s.party.FindParticipant(userID); ok {
		return m.Name
	}
	return ""
}

func (s *Session) queuePayload() map[string]any {
	return map[string]any{
		"musicQueue":  s.party.MusicQueue,
		"isShuffled":  s.party.IsShuffled,
		"queueMode":   s.party.QueueMode,
		"currentSong": s.party.CurrentSong,
	}
}
