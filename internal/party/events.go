package party

// EventKind enumerates the closed set of session events. The realtime
// bridge forwards them verbatim to party members; handling a kind outside
// this set is a bug in the consumer.
type EventKind string

const (
	EventPartyCreated      EventKind = "party.created"
	EventPartyEnded        EventKind = "party.ended"
	EventParticipantJoined EventKind = "party.participant_joined"
	EventParticipantLeft   EventKind = "party.participant_left"
	EventSessionState      EventKind = "session.state_changed"
	EventQueueChanged      EventKind = "queue.changed"
	EventTrackStarted      EventKind = "player.track_started"
	EventPlaybackSynced    EventKind = "player.state_changed"
	EventModeration        EventKind = "moderation.changed"
	EventQueueDenied       EventKind = "queue.permission_denied"
)

// Event is one session notification, fanned out to connected clients.
type Event struct {
	Kind    EventKind `json:"type"`
	PartyID string    `json:"partyId"`
	Payload any       `json:"payload,omitempty"`
}
