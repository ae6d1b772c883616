package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"party-service/internal/party"
	"party-service/internal/partydoc"
	"party-service/internal/player"
	"party-service/internal/remote"
)

const createTimeout = 8 * time.Second

// Deps are the collaborators a session needs. Driver and Voice are owned
// externally; the coordinator only issues commands to them.
type Deps struct {
	Log    zerolog.Logger
	Store  remote.DocumentStore
	Origin string
	Audit  Audit
	Dir    PartyDirectory

	// NewDriver and NewVoice build the per-party collaborators; the audio
	// engine and voice transport are externally owned.
	NewDriver func(partyID string) player.Driver
	NewVoice  func(partyID string) player.VoiceChat
}

// PartyDirectory is the durable lookup side used for admission: access
// code resolution and the follower check behind friends-only parties.
type PartyDirectory interface {
	CreateParty(ctx context.Context, p *party.Party) error
	MarkInactive(ctx context.Context, partyID string) error
	FindActiveByAccessCode(ctx context.Context, code string) (string, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
}

// Registry owns the live sessions on this instance, one actor per party,
// and the shared event stream the realtime bridge consumes.
type Registry struct {
	log    zerolog.Logger
	deps   Deps
	events chan party.Event

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		log:      deps.Log.With().Str("component", "registry").Logger(),
		deps:     deps,
		events:   make(chan party.Event, 256),
		sessions: make(map[string]*Session),
	}
}

// Events is the fan-in stream of session events across all parties.
func (r *Registry) Events() <-chan party.Event { return r.events }

// Get returns the live session for partyID on this instance. Sessions torn
// down by a remote end are pruned lazily here.
func (r *Registry) Get(partyID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[partyID]
	if !ok {
		return nil, false
	}
	select {
	case <-s.closed:
		delete(r.sessions, partyID)
		return nil, false
	default:
	}
	return s, true
}

// CreateParams describes a new party.
type CreateParams struct {
	Name           string
	HostID         string
	HostName       string
	AdmissionMode  party.AdmissionMode
	WhoCanAddSongs party.AddPolicy
}

// Create builds the party, attempts the remote create under a timeout race
// and activates the session. A transient-infrastructure failure still
// activates the party locally: the session proceeds offline-first and
// reconciles on later writes.
func (r *Registry) Create(ctx context.Context, params CreateParams) (*party.Party, error) {
	now := time.Now().UTC()
	p := &party.Party{
		ID:       uuid.NewString(),
		Name:     params.Name,
		HostID:   params.HostID,
		HostName: params.HostName,
		Participants: []party.Participant{{
			ID:       params.HostID,
			Name:     params.HostName,
			IsHost:   true,
			JoinedAt: now,
		}},
		CoHostIDs:      []string{},
		MutedUserIDs:   []string{},
		BannedUserIDs:  []string{},
		MusicQueue:     []party.Track{},
		OriginalQueue:  []party.Track{},
		QueueMode:      party.QueueModeManual,
		AdmissionMode:  params.AdmissionMode,
		WhoCanAddSongs: params.WhoCanAddSongs,
		IsActive:       true,
		CreatedAt:      now,
	}
	if p.AdmissionMode == "" {
		p.AdmissionMode = party.AdmissionOpen
	}
	if p.WhoCanAddSongs == "" {
		p.WhoCanAddSongs = party.AddPolicyAll
	}
	if p.AdmissionMode == party.AdmissionCode {
		p.AccessCode = newAccessCode()
	}

	err := raceTimeout(ctx, createTimeout, func(ctx context.Context) error {
		if err := r.deps.Store.CreateDocument(ctx, p.ID, partydoc.CreateFields(p)); err != nil {
			return err
		}
		return r.deps.Dir.CreateParty(ctx, p)
	})
	if err != nil {
		if !isTransientInfra(err) {
			return nil, err
		}
		// Offline-first: the user-visible create still succeeds and the
		// document catches up on the next successful write.
		r.log.Warn().Err(err).Str("partyId", p.ID).Msg("remote create failed, activating locally")
	}

	s := r.activate(p)
	s.emit(party.EventPartyCreated, map[string]any{"name": p.Name, "hostId": p.HostID})
	return p.Clone(), nil
}

// activate starts the actor, the ingest listener and the player loop, and
// arms the audio output. Registration decides races: when two callers
// activate the same party concurrently, exactly one session wins and the
// loser is discarded before any of its goroutines start.
func (r *Registry) activate(p *party.Party) *Session {
	s := newSession(p, r.deps, r.events)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	r.mu.Lock()
	if existing, ok := r.sessions[p.ID]; ok {
		select {
		case <-existing.closed:
			delete(r.sessions, p.ID)
		default:
			r.mu.Unlock()
			// Lost the race. Nothing of the duplicate has started yet,
			// so teardown is just the writer and the unused context.
			cancel()
			s.writer.Close()
			return existing
		}
	}
	r.sessions[p.ID] = s
	r.mu.Unlock()

	go s.run()
	go s.runPlayerLoop(ctx)
	if updates, err := r.deps.Store.Subscribe(ctx, p.ID); err != nil {
		s.log.Warn().Err(err).Msg("update subscription failed, session is local-only")
	} else {
		go s.runIngest(ctx, updates)
	}

	s.driver.SetQueue(p.MusicQueue)
	if err := s.voice.Start(p.ID); err != nil {
		s.log.Warn().Err(err).Msg("voice chat start failed")
	}
	return s
}

// JoinParams identifies the joining user and the target party, by id or by
// access code.
type JoinParams struct {
	UserID     string
	UserName   string
	PartyID    string
	AccessCode string
}

// Join admits a user to a party. Misses report ErrPartyNotFound; a
// friends-only denial reports ErrFriendsOnly and a ban ErrBanned — three
// distinct outward signals, never folded together.
func (r *Registry) Join(ctx context.Context, params JoinParams) (*party.Party, error) {
	partyID := params.PartyID
	if partyID == "" {
		if params.AccessCode == "" {
			return nil, party.ErrPartyNotFound
		}
		code := normalizeCode(params.AccessCode)
		id, err := r.deps.Dir.FindActiveByAccessCode(ctx, code)
		if err != nil {
			return nil, err
		}
		partyID = id
	}

	s, ok := r.Get(partyID)
	if !ok {
		// The party is live somewhere else; hydrate from the remote
		// document and host a listener session here.
		var err error
		s, err = r.hydrate(ctx, partyID)
		if err != nil {
			return nil, err
		}
	}

	snap, _ := s.Snapshot()
	if snap == nil || !snap.IsActive {
		return nil, party.ErrPartyNotFound
	}
	if snap.IsBanned(params.UserID) {
		return nil, party.ErrBanned
	}
	if snap.AdmissionMode == party.AdmissionFriends && params.UserID != snap.HostID {
		follows, err := r.deps.Dir.IsFollowing(ctx, params.UserID, snap.HostID)
		if err != nil {
			return nil, err
		}
		if !follows {
			return nil, party.ErrFriendsOnly
		}
	}

	var joined *party.Party
	err := s.do(func() {
		// Re-check on the actor; a ban may have landed since the snapshot.
		if s.party.IsBanned(params.UserID) {
			return
		}
		if s.party.AddParticipant(party.Participant{
			ID:       params.UserID,
			Name:     params.UserName,
			JoinedAt: time.Now().UTC(),
		}) {
			s.writer.FieldsChanged(map[string]any{partydoc.FieldParticipants: s.party.Participants})
			s.emit(party.EventParticipantJoined, map[string]any{
				"userId": params.UserID,
				"name":   params.UserName,
			})
		}
		joined = s.party.Clone()
	})
	if err != nil {
		return nil, party.ErrPartyNotFound
	}
	if joined == nil {
		return nil, party.ErrBanned
	}
	return joined, nil
}

func (r *Registry) hydrate(ctx context.Context, partyID string) (*Session, error) {
	fields, err := r.deps.Store.GetDocument(ctx, partyID)
	if err != nil || len(fields) == 0 {
		return nil, party.ErrPartyNotFound
	}
	p, err := partydoc.DecodeParty(partyID, fields)
	if err != nil {
		r.log.Warn().Err(err).Str("partyId", partyID).Msg("party document undecodable")
		return nil, party.ErrPartyNotFound
	}
	if !p.IsActive {
		return nil, party.ErrPartyNotFound
	}

	if existing, ok := r.Get(partyID); ok {
		return existing, nil
	}
	return r.activate(p), nil
}

// Minimize hides the session UI while keeping every subsystem running.
// Valid only from the active state; anything else is a no-op.
func (s *Session) Minimize() bool {
	var ok bool
	_ = s.do(func() {
		if s.state != party.StateActive {
			return
		}
		s.state = party.StateMinimized
		// Refresh now-playing metadata so playback stays controllable
		// while the UI is hidden.
		s.driver.SetQueue(s.party.MusicQueue)
		s.driver.SyncPosition(s.driver.CurrentTimeMs())
		s.emit(party.EventSessionState, map[string]any{"state": s.state})
		ok = true
	})
	if ok {
		go s.writer.Flush()
	}
	return ok
}

// Restore returns a minimized session to the foreground. Like Minimize it
// flushes pending writes so the remote document is current at the state
// change; the connection state itself is device-local and never persisted.
func (s *Session) Restore() bool {
	var ok bool
	_ = s.do(func() {
		if s.state != party.StateMinimized {
			return
		}
		s.state = party.StateActive
		s.emit(party.EventSessionState, map[string]any{"state": s.state})
		ok = true
	})
	if ok {
		go s.writer.Flush()
	}
	return ok
}

// Leave removes a participant. The host leaving ends the party for
// everyone; anyone else just drops off the roster.
func (r *Registry) Leave(ctx context.Context, partyID, userID string) error {
	s, ok := r.Get(partyID)
	if !ok {
		return party.ErrPartyNotFound
	}
	snap, _ := s.Snapshot()
	if snap == nil {
		return party.ErrPartyNotFound
	}
	if userID == snap.HostID {
		return r.End(ctx, partyID, userID)
	}

	return s.do(func() {
		if s.party.RemoveParticipant(userID) {
			s.writer.FieldsChanged(map[string]any{partydoc.FieldParticipants: s.party.Participants})
			s.emit(party.EventParticipantLeft, map[string]any{"userId": userID, "reason": "left"})
		}
	})
}

// End marks the party inactive and tears the session down. The remote
// record stays for the history audit trail. Host-only intent is enforced
// by the caller, not here.
func (r *Registry) End(ctx context.Context, partyID, endedBy string) error {
	r.mu.Lock()
	s, ok := r.sessions[partyID]
	delete(r.sessions, partyID)
	r.mu.Unlock()
	if !ok {
		return party.ErrPartyNotFound
	}

	_ = s.do(func() {
		s.party.IsActive = false
		s.state = party.StateDisconnected
		s.emit(party.EventPartyEnded, map[string]any{"endedBy": endedBy})
	})

	// Pending debounced writes must not resurrect the party after
	// teardown.
	s.writer.Close()
	s.driver.Pause()
	s.voice.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.closeOnce.Do(func() { close(s.closed) })

	if err := s.markEndedRemote(ctx); err != nil {
		s.log.Warn().Err(err).Msg("remote end write failed")
	}
	if err := r.deps.Dir.MarkInactive(ctx, partyID); err != nil {
		s.log.Warn().Err(err).Msg("directory end write failed")
	}
	return nil
}

func (s *Session) markEndedRemote(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.store.UpdateDocument(ctx, s.party.ID, map[string]any{
		partydoc.FieldIsActive: false,
	})
}

// raceTimeout runs op against a timer; whichever finishes first wins and
// the loser is cancelled.
func raceTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(opCtx) }()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		cancel()
		return party.ErrTimeout
	}
}

// isTransientInfra classifies failures the coordinator recovers from by
// proceeding offline-first.
func isTransientInfra(err error) bool {
	if errors.Is(err, party.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Access codes avoid characters that read ambiguously in a share sheet.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newAccessCode() string {
	id := uuid.New()
	code := make([]byte, 6)
	for i := range code {
		code[i] = codeAlphabet[int(id[i])%len(codeAlphabet)]
	}
	return string(code)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
