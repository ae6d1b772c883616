package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-service/internal/party"
)

func song(id string) party.Track {
	return party.Track{ID: id, Title: "Song " + id, Artist: "Artist"}
}

func TestAddSong_FirstAddStartsPlayback(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)
	stub := env.drivers.stub(p.ID)

	require.NoError(t, sess.AddSong("host", song("a"), "", nil))

	snap, _ := sess.Snapshot()
	require.NotNil(t, snap.CurrentSong)
	assert.Equal(t, "a", snap.CurrentSong.ID)
	assert.Empty(t, snap.MusicQueue)
	require.Len(t, stub.Plays(), 1)
	assert.Equal(t, "a", stub.Plays()[0].ID)
	require.Len(t, snap.QueueHistory, 1)
	assert.Equal(t, "host", snap.QueueHistory[0].PlayedBy)

	// Second add queues without touching playback.
	require.NoError(t, sess.AddSong("host", song("b"), "", nil))
	snap, _ = sess.Snapshot()
	assert.Equal(t, "a", snap.CurrentSong.ID)
	require.Len(t, snap.MusicQueue, 1)
	assert.Len(t, stub.Plays(), 1)
}

func TestAddSong_HostOnlyPolicyDeniesGuests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createParty(t, CreateParams{
		Name: "Friday Mix", HostID: "host", HostName: "Host",
		WhoCanAddSongs: party.AddPolicyHost,
	})
	_, err := env.reg.Join(ctx, JoinParams{UserID: "guest", UserName: "Guest", PartyID: p.ID})
	require.NoError(t, err)
	sess, _ := env.reg.Get(p.ID)

	err = sess.AddSong("guest", song("a"), "", nil)
	assert.ErrorIs(t, err, party.ErrQueueDenied)

	snap, _ := sess.Snapshot()
	assert.Nil(t, snap.CurrentSong, "the denied add must not mutate anything")
	assert.Empty(t, snap.MusicQueue)

	// The host still can, and a promoted co-host too.
	require.NoError(t, sess.AddSong("host", song("a"), "", nil))
	require.NoError(t, sess.PromoteCoHost("host", "guest"))
	require.NoError(t, sess.AddSong("guest", song("b"), "", nil))

	snap, _ = sess.Snapshot()
	require.Len(t, snap.MusicQueue, 1)
	assert.Equal(t, "guest", snap.MusicQueue[0].AddedBy)
}

func TestPlayNext_InsertsAtHead(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)

	for _, id := range []string{"cur", "a", "b"} {
		require.NoError(t, sess.AddSong("host", song(id), "", nil))
	}
	require.NoError(t, sess.PlayNext("host", []party.Track{song("x"), song("y")}))

	snap, _ := sess.Snapshot()
	ids := make([]string, len(snap.MusicQueue))
	for i, s := range snap.MusicQueue {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"x", "y", "a", "b"}, ids)
}

func TestSkip_AdvancesAndRecordsSkip(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)
	stub := env.drivers.stub(p.ID)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, sess.AddSong("host", song(id), "", nil))
	}
	require.NoError(t, sess.Skip("host"))

	snap, _ := sess.Snapshot()
	assert.Equal(t, "b", snap.CurrentSong.ID)
	assert.Empty(t, snap.MusicQueue)
	require.Len(t, stub.Plays(), 2)

	// "a" started, "a" was skipped, "b" started.
	require.Len(t, snap.QueueHistory, 3)
	assert.Equal(t, "a", snap.QueueHistory[1].Song.ID)
	assert.True(t, snap.QueueHistory[1].WasSkipped)
	assert.Equal(t, "b", snap.QueueHistory[2].Song.ID)
	assert.False(t, snap.QueueHistory[2].WasSkipped)
}

// Every playback start lands in history, including tracks promoted by an
// advance; the last track of a session must not vanish from the log.
func TestSkip_RecordsStartOfNextTrack(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, sess.AddSong("host", song(id), "", nil))
	}
	require.NoError(t, sess.Skip("host"))

	snap, _ := sess.Snapshot()
	var started []string
	for _, item := range snap.QueueHistory {
		if !item.WasSkipped && item.PlayDurationMs == 0 {
			started = append(started, item.Song.ID)
		}
	}
	assert.Contains(t, started, "b", "the track promoted by the skip gets a start record")
	assert.Equal(t, "host", snap.QueueHistory[len(snap.QueueHistory)-1].PlayedBy)

	// The durable audit log sees the start too.
	require.Eventually(t, func() bool {
		env.dir.mu.Lock()
		defer env.dir.mu.Unlock()
		for _, item := range env.dir.history {
			if item.Song.ID == "b" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSkip_EmptyQueueLeavesCurrentSong(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)

	require.NoError(t, sess.AddSong("host", song("a"), "", nil))
	require.NoError(t, sess.Skip("host"))

	snap, _ := sess.Snapshot()
	require.NotNil(t, snap.CurrentSong)
	assert.Equal(t, "a", snap.CurrentSong.ID)
}

func TestPlayerLoop_NaturalFinishAdvances(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)
	stub := env.drivers.stub(p.ID)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, sess.AddSong("host", song(id), "", nil))
	}
	stub.Finish()

	require.Eventually(t, func() bool {
		snap, _ := sess.Snapshot()
		return snap.CurrentSong != nil && snap.CurrentSong.ID == "b"
	}, 2*time.Second, 10*time.Millisecond)

	snap, _ := sess.Snapshot()
	require.Len(t, snap.QueueHistory, 3)
	finished := snap.QueueHistory[1]
	assert.Equal(t, "a", finished.Song.ID)
	assert.False(t, finished.WasSkipped, "a natural finish is not a skip")
	assert.Equal(t, "host", finished.PlayedBy)
	assert.Equal(t, "b", snap.QueueHistory[2].Song.ID)
}

func TestSetShuffle_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)

	for _, id := range []string{"cur", "a", "b", "c", "d"} {
		require.NoError(t, sess.AddSong("host", song(id), "", nil))
	}
	before, _ := sess.Snapshot()

	require.NoError(t, sess.SetShuffle("host", true))
	mid, _ := sess.Snapshot()
	assert.True(t, mid.IsShuffled)
	assert.ElementsMatch(t, before.MusicQueue, mid.MusicQueue)

	require.NoError(t, sess.SetShuffle("host", false))
	after, _ := sess.Snapshot()
	assert.False(t, after.IsShuffled)
	assert.Equal(t, before.MusicQueue, after.MusicQueue)
}

func TestQueueEdits_PersistDebounced(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)

	base := env.store.updateCount()
	for _, id := range []string{"cur", "a", "b", "c"} {
		require.NoError(t, sess.AddSong("host", song(id), "", nil))
	}

	// Four adds inside one window coalesce into a single remote write.
	require.Eventually(t, func() bool {
		return env.store.updateCount() == base+1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, base+1, env.store.updateCount())
}

func TestModeration_BanKeepsMuteListIntact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	_, err := env.reg.Join(ctx, JoinParams{UserID: "u1", UserName: "U1", PartyID: p.ID})
	require.NoError(t, err)
	sess, _ := env.reg.Get(p.ID)

	require.NoError(t, sess.SetRoomMute("host", "u1", true))
	require.NoError(t, sess.Ban("host", "u1"))

	snap, _ := sess.Snapshot()
	assert.True(t, snap.IsBanned("u1"))
	_, onRoster := snap.FindParticipant("u1")
	assert.False(t, onRoster)
	assert.Equal(t, []string{"u1"}, snap.MutedUserIDs)
}

func TestModeration_GuestCannotModerate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	_, err := env.reg.Join(ctx, JoinParams{UserID: "u1", UserName: "U1", PartyID: p.ID})
	require.NoError(t, err)
	sess, _ := env.reg.Get(p.ID)

	assert.ErrorIs(t, sess.Kick("u1", "host"), party.ErrNotModerator)
	assert.ErrorIs(t, sess.PromoteCoHost("u1", "u1"), party.ErrNotHost)
	assert.ErrorIs(t, sess.MuteAllExceptHost("u1"), party.ErrNotModerator)
}

func TestUpdateSettings_HostOnly(t *testing.T) {
	env := newTestEnv(t)
	p := env.createParty(t, CreateParams{Name: "P", HostID: "host", HostName: "Host"})
	sess, _ := env.reg.Get(p.ID)

	policy := party.AddPolicyHost
	assert.ErrorIs(t, sess.UpdateSettings("u1", nil, &policy), party.ErrNotHost)

	require.NoError(t, sess.UpdateSettings("host", nil, &policy))
	snap, _ := sess.Snapshot()
	assert.Equal(t, party.AddPolicyHost, snap.WhoCanAddSongs)
	assert.Equal(t, party.AdmissionOpen, snap.AdmissionMode, "nil leaves the field unchanged")
}
