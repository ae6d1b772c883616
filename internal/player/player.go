// Package player declares the externally owned collaborators: the audio
// playback driver and the voice-chat subsystem. The coordinator only ever
// tells them what to do; it never treats them as the source of truth for
// session state.
package player

import (
	"sync"

	"party-service/internal/party"
)

// Driver is the local audio engine. Finished delivers its single event:
// the current track played to its natural end.
type Driver interface {
	Play(track party.Track)
	Pause()
	SetQueue(tracks []party.Track)
	SyncPosition(positionMs int)
	CurrentTimeMs() int
	IsPlaying() bool
	Finished() <-chan struct{}
}

// VoiceChat is lifecycle-only and opaque to the coordinator.
type VoiceChat interface {
	Start(partyID string) error
	Stop()
}

// Stub is an in-memory Driver for tests and for running the service
// without a real audio engine.
type Stub struct {
	mu       sync.Mutex
	playing  bool
	position int
	current  *party.Track
	queue    []party.Track
	finished chan struct{}

	playCalls     []party.Track
	pauseCalls    int
	setQueueCalls [][]party.Track
}

func NewStub() *Stub {
	return &Stub{finished: make(chan struct{}, 1)}
}

func (s *Stub) Play(track party.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &track
	s.playing = true
	s.position = 0
	s.playCalls = append(s.playCalls, track)
}

func (s *Stub) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.pauseCalls++
}

func (s *Stub) SetQueue(tracks []party.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append([]party.Track(nil), tracks...)
	s.setQueueCalls = append(s.setQueueCalls, s.queue)
}

func (s *Stub) SyncPosition(positionMs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = positionMs
}

func (s *Stub) CurrentTimeMs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Stub) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Stub) Finished() <-chan struct{} { return s.finished }

// Finish simulates the current track reaching its natural end.
func (s *Stub) Finish() {
	select {
	case s.finished <- struct{}{}:
	default:
	}
}

// Plays returns the tracks Play was called with, in order.
func (s *Stub) Plays() []party.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]party.Track(nil), s.playCalls...)
}

// Pauses returns how many times Pause was called.
func (s *Stub) Pauses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseCalls
}

// LastQueue returns the queue from the most recent SetQueue call.
func (s *Stub) LastQueue() []party.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.setQueueCalls) == 0 {
		return nil
	}
	return s.setQueueCalls[len(s.setQueueCalls)-1]
}

// NopVoice is a VoiceChat that does nothing, for tests and voice-less
// deployments.
type NopVoice struct {
	mu      sync.Mutex
	started []string
	stops   int
}

func (v *NopVoice) Start(partyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.started = append(v.started, partyID)
	return nil
}

func (v *NopVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stops++
}

// Started returns the party ids Start was called with.
func (v *NopVoice) Started() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.started...)
}

// Stops returns how many times Stop was called.
func (v *NopVoice) Stops() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stops
}
