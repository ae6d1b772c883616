package party

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Queue engine: pure mutations over the Party aggregate, no I/O. All
// index-based operations clamp or ignore out-of-range input instead of
// failing, because queue indices from the UI are frequently stale by the
// time they arrive.
//
// Invariant maintained throughout: when IsShuffled is false, OriginalQueue
// mirrors MusicQueue; when true, OriginalQueue holds the pre-shuffle order
// with the same multiset of songs.

// AppendSong adds song to the end of the queue. If nothing is playing and
// the queue is empty, the song is promoted straight to CurrentSong instead
// (auto-play on first add); the returned flag reports that promotion so the
// caller can start playback. Playlist provenance is recorded only when it is
// empty or the playlist changed, so incremental adds do not clobber it.
func (p *Party) AppendSong(song Track, playlistID string, playlistSongs []Track) (promoted bool) {
	if playlistID != "" && (p.SourcePlaylistID == "" || p.SourcePlaylistID != playlistID) {
		p.SourcePlaylistID = playlistID
		p.SourcePlaylistSongs = append([]Track(nil), playlistSongs...)
	}

	if p.CurrentSong == nil && len(p.MusicQueue) == 0 {
		p.CurrentSong = &song
		p.syncOriginal()
		return true
	}

	p.MusicQueue = append(p.MusicQueue, song)
	if p.IsShuffled {
		p.OriginalQueue = append(p.OriginalQueue, song)
	} else {
		p.syncOriginal()
	}
	return false
}

// PlaySongNext inserts song at the head of the queue so it plays before
// everything already queued.
func (p *Party) PlaySongNext(song Track) {
	p.MusicQueue = append([]Track{song}, p.MusicQueue...)
	if p.IsShuffled {
		p.OriginalQueue = append([]Track{song}, p.OriginalQueue...)
	} else {
		p.syncOriginal()
	}
}

// PlaySongsNext inserts songs at the head of the queue preserving their
// given order. Iterating in reverse keeps songs[0] first after the repeated
// head inserts.
func (p *Party) PlaySongsNext(songs []Track) {
	for i := len(songs) - 1; i >= 0; i-- {
		p.PlaySongNext(songs[i])
	}
}

// RemoveSong drops the song at index. Out-of-range indices are a no-op.
func (p *Party) RemoveSong(index int) bool {
	if index < 0 || index >= len(p.MusicQueue) {
		return false
	}
	removed := p.MusicQueue[index]
	p.MusicQueue = append(p.MusicQueue[:index], p.MusicQueue[index+1:]...)
	if p.IsShuffled {
		p.OriginalQueue = removeFirstByID(p.OriginalQueue, removed.ID)
	} else {
		p.syncOriginal()
	}
	return true
}

// MoveSong moves the song at from to position to. Out-of-range indices are
// a no-op. When not shuffled, the original-order snapshot is re-captured so
// a later unshuffle restores the order the user actually arranged.
func (p *Party) MoveSong(from, to int) bool {
	n := len(p.MusicQueue)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return false
	}
	song := p.MusicQueue[from]
	rest := append(p.MusicQueue[:from:from], p.MusicQueue[from+1:]...)
	p.MusicQueue = append(rest[:to:to], append([]Track{song}, rest[to:]...)...)
	if !p.IsShuffled {
		p.syncOriginal()
	}
	return true
}

// ShuffleQueue pseudo-randomly permutes the queue. Only the first shuffle
// snapshots OriginalQueue; re-shuffling an already shuffled queue must not
// overwrite the true pre-shuffle order.
func (p *Party) ShuffleQueue(rng *rand.Rand) {
	if !p.IsShuffled {
		p.OriginalQueue = append([]Track(nil), p.MusicQueue...)
		p.IsShuffled = true
	}
	rng.Shuffle(len(p.MusicQueue), func(i, j int) {
		p.MusicQueue[i], p.MusicQueue[j] = p.MusicQueue[j], p.MusicQueue[i]
	})
}

// UnshuffleQueue restores the queue from the pre-shuffle snapshot.
func (p *Party) UnshuffleQueue() {
	if !p.IsShuffled {
		return
	}
	p.MusicQueue = append([]Track(nil), p.OriginalQueue...)
	p.IsShuffled = false
}

// SetQueueMode switches the auto-queue strategy. When the queue came from a
// known playlist the upcoming queue is regenerated deterministically from
// that source under the new mode; otherwise the mode only affects future
// additions. Regeneration clears shuffle state and never re-queues the
// currently playing song.
func (p *Party) SetQueueMode(mode QueueMode) (regenerated bool) {
	p.QueueMode = mode
	if len(p.SourcePlaylistSongs) == 0 {
		return false
	}
	source := p.SourcePlaylistSongs
	if p.CurrentSong != nil {
		source = removeFirstByID(append([]Track(nil), source...), p.CurrentSong.ID)
	}
	p.MusicQueue = regenerateQueue(source, mode)
	p.IsShuffled = false
	p.syncOriginal()
	return true
}

// AdvanceQueue pops the queue head into CurrentSong, recording a history
// item for the song that was playing. finished reports whether the previous
// song played to its natural end; anything else is recorded as skipped.
// Returns the new current song, or nil if the queue was empty (no-op).
func (p *Party) AdvanceQueue(playedBy, playedByName string, playedMs int, finished bool) *Track {
	if len(p.MusicQueue) == 0 {
		return nil
	}
	if p.CurrentSong != nil {
		p.AddToHistory(*p.CurrentSong, playedBy, playedByName, playedMs, !finished)
	}
	next := p.MusicQueue[0]
	p.MusicQueue = append([]Track(nil), p.MusicQueue[1:]...)
	if p.IsShuffled {
		p.OriginalQueue = removeFirstByID(p.OriginalQueue, next.ID)
	} else {
		p.syncOriginal()
	}
	p.CurrentSong = &next
	return &next
}

// AddToHistory appends a history item. History is append-only; callers
// never mutate recorded items.
func (p *Party) AddToHistory(song Track, playedBy, playedByName string, playedMs int, wasSkipped bool) HistoryItem {
	item := HistoryItem{
		ID:             uuid.NewString(),
		Song:           song,
		PlayedBy:       playedBy,
		PlayedByName:   playedByName,
		PlayedAt:       time.Now().UTC(),
		PlayDurationMs: playedMs,
		WasSkipped:     wasSkipped,
	}
	p.QueueHistory = append(p.QueueHistory, item)
	return item
}

// syncOriginal keeps the unshuffled mirror in step with the live queue.
func (p *Party) syncOriginal() {
	p.OriginalQueue = append([]Track(nil), p.MusicQueue...)
}

func removeFirstByID(songs []Track, id string) []Track {
	for i, s := range songs {
		if s.ID == id {
			return append(songs[:i], songs[i+1:]...)
		}
	}
	return songs
}

// regenerateQueue orders source under mode. Manual keeps the source order;
// artist-similarity groups songs by artist keeping the artists' first-seen
// order; genre-mix deals songs round-robin across genres so no genre runs
// back to back longer than necessary.
func regenerateQueue(source []Track, mode QueueMode) []Track {
	switch mode {
	case QueueModeArtistMix:
		return groupByKey(source, func(t Track) string { return t.Artist })
	case QueueModeGenreMix:
		return interleaveByKey(source, func(t Track) string { return t.Genre })
	default:
		return append([]Track(nil), source...)
	}
}

func groupByKey(source []Track, key func(Track) string) []Track {
	order := make([]string, 0, len(source))
	groups := make(map[string][]Track)
	for _, t := range source {
		k := key(t)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}
	out := make([]Track, 0, len(source))
	for _, k := range order {
		out = append(out, groups[k]...)
	}
	return out
}

func interleaveByKey(source []Track, key func(Track) string) []Track {
	order := make([]string, 0, len(source))
	groups := make(map[string][]Track)
	for _, t := range source {
		k := key(t)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}
	out := make([]Track, 0, len(source))
	for len(out) < len(source) {
		for _, k := range order {
			if len(groups[k]) > 0 {
				out = append(out, groups[k][0])
				groups[k] = groups[k][1:]
			}
		}
	}
	return out
}
