package session

import (
	"context"

	"party-service/internal/party"
	"party-service/internal/partydoc"
	"party-service/internal/remote"
)

// runIngest applies externally pushed document updates to the local state.
// Everything here goes through the actor like any UI mutation, but never
// touches the debounced writer: an inbound update must not trigger an
// outbound write. That is the loop-prevention mechanism.
func (s *Session) runIngest(ctx context.Context, updates <-chan remote.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Origin == s.origin {
				// Echo of our own write.
				continue
			}
			upd, err := partydoc.DecodeUpdate(u.Fields)
			if err != nil {
				s.log.Warn().Err(err).Msg("undecodable remote update, skipped")
				continue
			}
			_ = s.do(func() { s.applyRemote(upd) })
		}
	}
}

func (s *Session) applyRemote(u partydoc.Update) {
	// Playback sync: a new current song, a cleared slot, a seek, or a
	// play/pause flip.
	if u.CurrentSong != nil {
		changed := s.party.CurrentSong == nil || s.party.CurrentSong.ID != u.CurrentSong.ID
		if changed {
			song := *u.CurrentSong
			s.party.CurrentSong = &song
			s.party.MusicQueue = removeQueued(s.party.MusicQueue, song.ID)
			s.driver.Play(song)
			item := s.party.AddToHistory(song, "", "", 0, false)
			s.auditHistory(item)
			s.emit(party.EventTrackStarted, map[string]any{"song": song, "startedBy": ""})
		}
	} else if u.ClearSong {
		s.party.CurrentSong = nil
		s.driver.Pause()
	}
	if u.PositionMs != nil {
		s.driver.SyncPosition(*u.PositionMs)
	}
	if u.IsPlaying != nil && !*u.IsPlaying {
		s.driver.Pause()
	}
	if u.PositionMs != nil || u.IsPlaying != nil {
		s.emit(party.EventPlaybackSynced, map[string]any{
			"positionMs": u.PositionMs,
			"isPlaying":  u.IsPlaying,
		})
	}

	// Queue replacement for listeners that do not drive the queue engine
	// themselves.
	if u.QueueSet {
		s.party.MusicQueue = u.Queue
		if u.OriginalQueue != nil {
			s.party.OriginalQueue = u.OriginalQueue
		} else if !s.party.IsShuffled {
			s.party.OriginalQueue = append([]party.Track(nil), u.Queue...)
		}
		s.driver.SetQueue(s.party.MusicQueue)
		s.emit(party.EventQueueChanged, s.queuePayload())
	}

	// Shuffle-state echo.
	if u.Shuffled != nil && *u.Shuffled != s.party.IsShuffled {
		s.party.IsShuffled = *u.Shuffled
		s.emit(party.EventQueueChanged, s.queuePayload())
	}
	if u.QueueMode != nil {
		s.party.QueueMode = party.QueueMode(*u.QueueMode)
	}

	// A remote end closes this session too.
	if u.IsActive != nil && !*u.IsActive {
		s.party.IsActive = false
		s.state = party.StateDisconnected
		s.driver.Pause()
		s.voice.Stop()
		s.writer.Close()
		s.emit(party.EventPartyEnded, map[string]any{})
		if s.cancel != nil {
			s.cancel()
		}
		s.closeOnce.Do(func() { close(s.closed) })
	}
}

func removeQueued(queue []party.Track, id string) []party.Track {
	for i, t := range queue {
		if t.ID == id {
			return append(queue[:i], queue[i+1:]...)
		}
	}
	return queue
}
