package session

import (
	"party-service/internal/party"
	"party-service/internal/partydoc"
)

// Moderation entry points. Each one mutates roster state on the actor and
// schedules a coalesced field write; unrelated moderation edits landing in
// the same debounce window go out as one update.

func (s *Session) PromoteCoHost(callerID, userID string) error {
	return s.moderate(func() error {
		return s.party.PromoteCoHost(callerID, userID)
	}, func() map[string]any {
		return map[string]any{partydoc.FieldCoHosts: s.party.CoHostIDs}
	})
}

func (s *Session) DemoteCoHost(callerID, userID string) error {
	return s.moderate(func() error {
		return s.party.DemoteCoHost(callerID, userID)
	}, func() map[string]any {
		return map[string]any{partydoc.FieldCoHosts: s.party.CoHostIDs}
	})
}

func (s *Session) Kick(callerID, userID string) error {
	err := s.moderate(func() error {
		return s.party.Kick(callerID, userID)
	}, func() map[string]any {
		return map[string]any{partydoc.FieldParticipants: s.party.Participants}
	})
	if err == nil {
		s.emitLeft(userID, "kicked")
	}
	return err
}

// Ban adds the user to the ban list and removes them from the roster. The
// mute list is untouched.
func (s *Session) Ban(callerID, userID string) error {
	err := s.moderate(func() error {
		return s.party.Ban(callerID, userID)
	}, func() map[string]any {
		return map[string]any{
			partydoc.FieldBanned:       s.party.BannedUserIDs,
			partydoc.FieldParticipants: s.party.Participants,
		}
	})
	if err == nil {
		s.emitLeft(userID, "banned")
	}
	return err
}

func (s *Session) SetRoomMute(callerID, userID string, muted bool) error {
	return s.moderate(func() error {
		return s.party.SetRoomMute(callerID, userID, muted)
	}, func() map[string]any {
		return map[string]any{partydoc.FieldMuted: s.party.MutedUserIDs}
	})
}

// MuteAllExceptHost mutes the whole roster except the host.
func (s *Session) MuteAllExceptHost(callerID string) error {
	return s.moderate(func() error {
		if !s.party.CanModerate(callerID) {
			return party.ErrNotModerator
		}
		s.party.MutedUserIDs = party.MuteAllExceptHost(s.party.Participants, s.party.HostID, s.party.MutedUserIDs)
		return nil
	}, func() map[string]any {
		return map[string]any{partydoc.FieldMuted: s.party.MutedUserIDs}
	})
}

// UnmuteAll clears the mute list.
func (s *Session) UnmuteAll(callerID string) error {
	return s.moderate(func() error {
		if !s.party.CanModerate(callerID) {
			return party.ErrNotModerator
		}
		s.party.MutedUserIDs = party.UnmuteAll()
		return nil
	}, func() map[string]any {
		return map[string]any{partydoc.FieldMuted: s.party.MutedUserIDs}
	})
}

// UpdateSettings changes the admission mode and/or add policy. Host-only.
func (s *Session) UpdateSettings(callerID string, admission *party.AdmissionMode, addPolicy *party.AddPolicy) error {
	return s.moderate(func() error {
		if callerID != s.party.HostID {
			return party.ErrNotHost
		}
		if admission != nil {
			s.party.AdmissionMode = *admission
		}
		if addPolicy != nil {
			s.party.WhoCanAddSongs = *addPolicy
		}
		return nil
	}, func() map[string]any {
		return map[string]any{
			partydoc.FieldAdmission: s.party.AdmissionMode,
			partydoc.FieldAddPolicy: s.party.WhoCanAddSongs,
		}
	})
}

// moderate applies op on the actor and, on success, schedules the field
// write and announces the change.
func (s *Session) moderate(op func() error, fields func() map[string]any) error {
	var opErr error
	err := s.do(func() {
		if opErr = op(); opErr != nil {
			return
		}
		s.writer.FieldsChanged(fields())
		s.emit(party.EventModeration, map[string]any{
			"coHostIds":     s.party.CoHostIDs,
			"mutedUserIds":  s.party.MutedUserIDs,
			"bannedUserIds": s.party.BannedUserIDs,
		})
	})
	if err != nil {
		return err
	}
	return opErr
}

func (s *Session) emitLeft(userID, reason string) {
	_ = s.do(func() {
		s.emit(party.EventParticipantLeft, map[string]any{"userId": userID, "reason": reason})
	})
}
