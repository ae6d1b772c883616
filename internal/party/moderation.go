package party

// Moderation actions layered on the roster. All set mutations are
// idempotent: re-adding a present id or removing an absent one changes
// nothing beyond the persisted write the caller schedules.

// PromoteCoHost grants co-host privileges. Host-only.
func (p *Party) PromoteCoHost(callerID, userID string) error {
	if callerID != p.HostID {
		return ErrNotHost
	}
	p.CoHostIDs = addUniqueID(p.CoHostIDs, userID)
	return nil
}

// DemoteCoHost revokes co-host privileges. Host-only.
func (p *Party) DemoteCoHost(callerID, userID string) error {
	if callerID != p.HostID {
		return ErrNotHost
	}
	p.CoHostIDs = removeID(p.CoHostIDs, userID)
	return nil
}

// Kick removes a participant from the roster without touching the ban or
// mute lists.
func (p *Party) Kick(callerID, userID string) error {
	if !p.CanModerate(callerID) {
		return ErrNotModerator
	}
	p.RemoveParticipant(userID)
	return nil
}

// Ban adds userID to the ban list and removes them from the roster; a ban
// implies a kick. The mute list is left as-is.
func (p *Party) Ban(callerID, userID string) error {
	if !p.CanModerate(callerID) {
		return ErrNotModerator
	}
	p.BannedUserIDs = addUniqueID(p.BannedUserIDs, userID)
	p.RemoveParticipant(userID)
	return nil
}

// SetRoomMute mutes or unmutes one participant in voice chat.
func (p *Party) SetRoomMute(callerID, userID string, muted bool) error {
	if !p.CanModerate(callerID) {
		return ErrNotModerator
	}
	if muted {
		p.MutedUserIDs = addUniqueID(p.MutedUserIDs, userID)
	} else {
		p.MutedUserIDs = removeID(p.MutedUserIDs, userID)
	}
	return nil
}

// MuteAllExceptHost returns muted ∪ (roster ids \ {hostID}). Pure so it is
// testable against any roster without network state.
func MuteAllExceptHost(participants []Participant, hostID string, muted []string) []string {
	out := append([]string(nil), muted...)
	for _, m := range participants {
		if m.ID == hostID {
			continue
		}
		out = addUniqueID(out, m.ID)
	}
	return out
}

// UnmuteAll resets the mute list regardless of prior state.
func UnmuteAll() []string {
	return []string{}
}
