package party

import (
	"time"
)

// Track is one playable song. Provider fields identify the song at the
// streaming provider; the coordinator never interprets them.
type Track struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Genre           string `json:"genre,omitempty"`
	Provider        string `json:"provider,omitempty"`
	ProviderTrackID string `json:"providerTrackId,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	DurationMs      int    `json:"durationMs"`
	AddedBy         string `json:"addedBy,omitempty"`
}

// Participant is a member of the party roster, unique by ID.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// HistoryItem records one track that actually played. Items are immutable
// once appended.
type HistoryItem struct {
	ID             string    `json:"id"`
	Song           Track     `json:"song"`
	PlayedBy       string    `json:"playedBy"`
	PlayedByName   string    `json:"playedByName"`
	PlayedAt       time.Time `json:"playedAt"`
	PlayDurationMs int       `json:"playDurationMs"`
	WasSkipped     bool      `json:"wasSkipped"`
}

// QueueMode selects how the queue is regenerated from its source playlist.
type QueueMode string

const (
	QueueModeManual    QueueMode = "manual"
	QueueModeArtistMix QueueMode = "artist-similarity"
	QueueModeGenreMix  QueueMode = "genre-mix"
)

// AdmissionMode gates who may join a party.
type AdmissionMode string

const (
	AdmissionOpen    AdmissionMode = "open"
	AdmissionCode    AdmissionMode = "code"
	AdmissionFriends AdmissionMode = "friends"
)

// AddPolicy gates who may mutate the queue.
type AddPolicy string

const (
	AddPolicyAll  AddPolicy = "all"
	AddPolicyHost AddPolicy = "host"
)

// ConnectionState is the session's visibility phase on this device.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateActive       ConnectionState = "active"
	StateMinimized    ConnectionState = "minimized"
)

// Party is the root aggregate for one listening session.
type Party struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HostID   string `json:"hostId"`
	HostName string `json:"hostName"`

	AccessCode string `json:"accessCode,omitempty"`

	Participants  []Participant `json:"participants"`
	CoHostIDs     []string      `json:"coHostIds"`
	MutedUserIDs  []string      `json:"mutedUserIds"`
	BannedUserIDs []string      `json:"bannedUserIds"`

	CurrentSong   *Track  `json:"currentSong,omitempty"`
	MusicQueue    []Track `json:"musicQueue"`
	OriginalQueue []Track `json:"originalQueue"`
	IsShuffled    bool    `json:"isShuffled"`

	QueueMode           QueueMode `json:"queueMode"`
	SourcePlaylistID    string    `json:"sourcePlaylistId,omitempty"`
	SourcePlaylistSongs []Track   `json:"sourcePlaylistSongs,omitempty"`

	QueueHistory []HistoryItem `json:"queueHistory"`

	AdmissionMode  AdmissionMode `json:"admissionMode"`
	WhoCanAddSongs AddPolicy     `json:"whoCanAddSongs"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// FindParticipant returns the roster entry for id, if present.
func (p *Party) FindParticipant(id string) (Participant, bool) {
	for _, m := range p.Participants {
		if m.ID == id {
			return m, true
		}
	}
	return Participant{}, false
}

// IsCoHost reports whether id has been promoted by the host.
func (p *Party) IsCoHost(id string) bool {
	return containsID(p.CoHostIDs, id)
}

// IsBanned reports whether id is on the ban list.
func (p *Party) IsBanned(id string) bool {
	return containsID(p.BannedUserIDs, id)
}

// CanModerate reports whether id may perform host-or-co-host actions.
func (p *Party) CanModerate(id string) bool {
	return id == p.HostID || p.IsCoHost(id)
}

// CanAddSongs is the queue-mutation authorization predicate. The host and
// co-hosts may always add; everyone else only under the "all" policy.
func (p *Party) CanAddSongs(userID string) bool {
	if p.WhoCanAddSongs == AddPolicyAll {
		return true
	}
	return p.CanModerate(userID)
}

// AddParticipant appends a roster entry if the id is not already present.
// Returns true when the roster changed.
func (p *Party) AddParticipant(m Participant) bool {
	if _, ok := p.FindParticipant(m.ID); ok {
		return false
	}
	p.Participants = append(p.Participants, m)
	return true
}

// RemoveParticipant drops the roster entry for id. Returns true when the
// roster changed.
func (p *Party) RemoveParticipant(id string) bool {
	for i, m := range p.Participants {
		if m.ID == id {
			p.Participants = append(p.Participants[:i], p.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand outside the session actor.
func (p *Party) Clone() *Party {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Participants = append([]Participant(nil), p.Participants...)
	cp.CoHostIDs = append([]string(nil), p.CoHostIDs...)
	cp.MutedUserIDs = append([]string(nil), p.MutedUserIDs...)
	cp.BannedUserIDs = append([]string(nil), p.BannedUserIDs...)
	cp.MusicQueue = append([]Track(nil), p.MusicQueue...)
	cp.OriginalQueue = append([]Track(nil), p.OriginalQueue...)
	cp.SourcePlaylistSongs = append([]Track(nil), p.SourcePlaylistSongs...)
	cp.QueueHistory = append([]HistoryItem(nil), p.QueueHistory...)
	if p.CurrentSong != nil {
		song := *p.CurrentSong
		cp.CurrentSong = &song
	}
	return &cp
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func addUniqueID(ids []string, id string) []string {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}
