// Package partydoc defines the versioned wire schema for the persisted
// party document. Encoding and decoding happen only at the persistence
// boundary; nothing else in the coordinator sees document field names.
package partydoc

import (
	"encoding/json"
	"fmt"

	"party-service/internal/party"
	"party-service/internal/persist"
)

// SchemaVersion is bumped on incompatible document layout changes.
const SchemaVersion = 1

// Document field names. The coordinator always writes partial updates, so
// these are the unit of change.
const (
	FieldSchemaVersion = "schemaVersion"
	FieldName          = "name"
	FieldHostID        = "hostId"
	FieldHostName      = "hostName"
	FieldAccessCode    = "accessCode"
	FieldParticipants  = "participants"
	FieldCoHosts       = "coHostIds"
	FieldMuted         = "mutedUserIds"
	FieldBanned        = "bannedUserIds"
	FieldCurrentSong   = "currentSong"
	FieldQueue         = "musicQueue"
	FieldOriginalQueue = "originalQueue"
	FieldShuffled      = "isShuffled"
	FieldQueueMode     = "queueMode"
	FieldSourceID      = "sourcePlaylistId"
	FieldSourceSongs   = "sourcePlaylistSongs"
	FieldHistory       = "queueHistory"
	FieldAdmission     = "admissionMode"
	FieldAddPolicy     = "whoCanAddSongs"
	FieldIsActive      = "isActive"
	FieldCreatedAt     = "createdAt"
	FieldPositionMs    = "positionMs"
	FieldIsPlaying     = "isPlaying"
)

// CreateFields encodes the full document for the initial create.
func CreateFields(p *party.Party) map[string]any {
	fields := map[string]any{
		FieldSchemaVersion: SchemaVersion,
		FieldName:          p.Name,
		FieldHostID:        p.HostID,
		FieldHostName:      p.HostName,
		FieldParticipants:  p.Participants,
		FieldCoHosts:       p.CoHostIDs,
		FieldMuted:         p.MutedUserIDs,
		FieldBanned:        p.BannedUserIDs,
		FieldQueue:         p.MusicQueue,
		FieldOriginalQueue: p.OriginalQueue,
		FieldShuffled:      p.IsShuffled,
		FieldQueueMode:     p.QueueMode,
		FieldHistory:       p.QueueHistory,
		FieldAdmission:     p.AdmissionMode,
		FieldAddPolicy:     p.WhoCanAddSongs,
		FieldIsActive:      p.IsActive,
		FieldCreatedAt:     p.CreatedAt,
	}
	if p.AccessCode != "" {
		fields[FieldAccessCode] = p.AccessCode
	}
	if p.CurrentSong != nil {
		fields[FieldCurrentSong] = p.CurrentSong
	}
	if p.SourcePlaylistID != "" {
		fields[FieldSourceID] = p.SourcePlaylistID
		fields[FieldSourceSongs] = p.SourcePlaylistSongs
	}
	return fields
}

// QueueSnapshot stages the queue-shaped slice of the document for the
// debounced writer, including the hash inputs and the independently hashed
// source-playlist payload.
func QueueSnapshot(p *party.Party) persist.QueueSnapshot {
	ids := make([]string, len(p.MusicQueue))
	for i, t := range p.MusicQueue {
		ids[i] = t.ID
	}
	fields := map[string]any{
		FieldQueue:         p.MusicQueue,
		FieldOriginalQueue: p.OriginalQueue,
		FieldShuffled:      p.IsShuffled,
		FieldQueueMode:     p.QueueMode,
		FieldSourceID:      p.SourcePlaylistID,
		FieldHistory:       p.QueueHistory,
	}
	if p.CurrentSong != nil {
		fields[FieldCurrentSong] = p.CurrentSong
	} else {
		fields[FieldCurrentSong] = nil
	}
	snap := persist.QueueSnapshot{
		Fields:      fields,
		SongIDs:     ids,
		Shuffled:    p.IsShuffled,
		Mode:        string(p.QueueMode),
		SourceField: FieldSourceSongs,
	}
	if len(p.SourcePlaylistSongs) > 0 {
		snap.Source = p.SourcePlaylistSongs
	}
	return snap
}

// DecodeParty rebuilds the aggregate from a full document, e.g. when a
// join lands on an instance that does not hold the party in memory yet.
func DecodeParty(id string, fields map[string]json.RawMessage) (*party.Party, error) {
	p := &party.Party{ID: id}
	str := func(name string, dst *string) error {
		raw, ok := fields[name]
		if !ok {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}
	obj := func(name string, dst any) error {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}

	var admission, policy, mode string
	steps := []error{
		str(FieldName, &p.Name),
		str(FieldHostID, &p.HostID),
		str(FieldHostName, &p.HostName),
		str(FieldAccessCode, &p.AccessCode),
		obj(FieldParticipants, &p.Participants),
		obj(FieldCoHosts, &p.CoHostIDs),
		obj(FieldMuted, &p.MutedUserIDs),
		obj(FieldBanned, &p.BannedUserIDs),
		obj(FieldCurrentSong, &p.CurrentSong),
		obj(FieldQueue, &p.MusicQueue),
		obj(FieldOriginalQueue, &p.OriginalQueue),
		obj(FieldShuffled, &p.IsShuffled),
		str(FieldSourceID, &p.SourcePlaylistID),
		obj(FieldSourceSongs, &p.SourcePlaylistSongs),
		obj(FieldHistory, &p.QueueHistory),
		str(FieldAdmission, &admission),
		str(FieldAddPolicy, &policy),
		str(FieldQueueMode, &mode),
		obj(FieldIsActive, &p.IsActive),
		obj(FieldCreatedAt, &p.CreatedAt),
	}
	for _, err := range steps {
		if err != nil {
			return nil, fmt.Errorf("partydoc: decode party %s: %w", id, err)
		}
	}
	p.AdmissionMode = party.AdmissionMode(admission)
	p.WhoCanAddSongs = party.AddPolicy(policy)
	p.QueueMode = party.QueueMode(mode)
	return p, nil
}

// Update is a decoded inbound document update. Pointer fields are nil when
// the update did not touch them.
type Update struct {
	CurrentSong   *party.Track
	ClearSong     bool
	PositionMs    *int
	IsPlaying     *bool
	Queue         []party.Track
	QueueSet      bool
	Shuffled      *bool
	OriginalQueue []party.Track
	QueueMode     *string
	IsActive      *bool
}

// DecodeUpdate maps raw document fields onto the typed update. Unknown
// fields are ignored so newer writers stay compatible with older readers.
func DecodeUpdate(fields map[string]json.RawMessage) (Update, error) {
	var u Update
	for name, raw := range fields {
		var err error
		switch name {
		case FieldCurrentSong:
			if string(raw) == "null" {
				u.ClearSong = true
				break
			}
			var t party.Track
			if err = json.Unmarshal(raw, &t); err == nil {
				u.CurrentSong = &t
			}
		case FieldPositionMs:
			var v int
			if err = json.Unmarshal(raw, &v); err == nil {
				u.PositionMs = &v
			}
		case FieldIsPlaying:
			var v bool
			if err = json.Unmarshal(raw, &v); err == nil {
				u.IsPlaying = &v
			}
		case FieldQueue:
			var q []party.Track
			if err = json.Unmarshal(raw, &q); err == nil {
				u.Queue = q
				u.QueueSet = true
			}
		case FieldOriginalQueue:
			err = json.Unmarshal(raw, &u.OriginalQueue)
		case FieldShuffled:
			var v bool
			if err = json.Unmarshal(raw, &v); err == nil {
				u.Shuffled = &v
			}
		case FieldQueueMode:
			var v string
			if err = json.Unmarshal(raw, &v); err == nil {
				u.QueueMode = &v
			}
		case FieldIsActive:
			var v bool
			if err = json.Unmarshal(raw, &v); err == nil {
				u.IsActive = &v
			}
		}
		if err != nil {
			return Update{}, fmt.Errorf("partydoc: decode %s: %w", name, err)
		}
	}
	return u, nil
}
