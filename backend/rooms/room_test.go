package rooms

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualdj/server/backend/model"
)

type sentEvent struct {
	memberID string
	ev       model.Event
}

type fakeSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeSender) Send(_, memberID string, ev model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{memberID: memberID, ev: ev})
}

func (f *fakeSender) byKind(kind string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events {
		if e.ev.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) forMember(memberID, kind string) []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, e := range f.events {
		if e.memberID == memberID && e.ev.Kind == kind {
			out = append(out, e.ev)
		}
	}
	return out
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRoom(clock *fakeClock, maxGuests int) (*Room, *fakeSender) {
	sender := &fakeSender{}
	logger := zerolog.Nop()
	cfg := Config{
		MinGuests:          2,
		MaxGuests:          50,
		SuggestionCooldown: 60 * time.Second,
		DebounceWindow:     500 * time.Millisecond,
		RecentChatLimit:    50,
		Now:                clock.Now,
	}
	return newRoom("TEST42", maxGuests, cfg, sender, logger), sender
}

func TestJoinAssignsHostThenGuests(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	role, err := room.Join("host", "Host")
	require.NoError(t, err)
	assert.Equal(t, model.RoleHost, role)
	assert.Equal(t, "host", room.HostID())

	role, err = room.Join("guest", "Guest")
	require.NoError(t, err)
	assert.Equal(t, model.RoleGuest, role)
}

func TestJoinRoomFull(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 2)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("g1", "One")
	require.NoError(t, err)
	_, err = room.Join("g2", "Two")
	require.NoError(t, err)

	_, err = room.Join("g3", "Three")
	assert.ErrorIs(t, err, ErrRoomFull)

	room.Leave("g1")

	_, err = room.Join("g3", "Three")
	assert.NoError(t, err)
}

func TestJoinSendsSnapshot(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)

	states := sender.forMember("host", model.KindRoomState)
	require.Len(t, states, 1)

	snap, ok := states[0].Data.(model.RoomSnapshot)
	require.True(t, ok)
	assert.Equal(t, "TEST42", snap.RoomID)
	assert.Equal(t, "host", snap.HostID)
	assert.Equal(t, model.StateIdle, snap.State)
	assert.Empty(t, snap.VideoID)
	assert.Empty(t, snap.Queue)
}

func TestRejoinKeepsRole(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)

	role, err := room.Join("host", "Host")
	require.NoError(t, err)
	assert.Equal(t, model.RoleHost, role)
	assert.Equal(t, 1, room.MemberCount())
	assert.Len(t, sender.forMember("host", model.KindRoomState), 2)
}

func TestApplyHostActionRejectsNonHost(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	require.NoError(t, room.ChangeVideo("host", "abc123"))
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)
	room.Ready("guest")

	before := room.Snapshot()
	sender.reset()

	err = room.ApplyHostAction("guest", model.ActionPause, 12)
	assert.ErrorIs(t, err, ErrNotHost)
	assert.Empty(t, sender.byKind(model.KindSyncPlayback))
	after := room.Snapshot()
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.CapturedAt, after.CapturedAt)
}

func TestApplyHostActionRequiresActiveVideo(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)

	err = room.ApplyHostAction("host", model.ActionPlay, 0)
	assert.ErrorIs(t, err, ErrNoActiveVideo)
}

func TestApplyHostActionUnknownType(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)

	err = room.ApplyHostAction("host", "STOP", 0)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDebounceSuppressesDuplicateTransitions(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	require.NoError(t, room.ChangeVideo("host", "abc123"))
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)
	room.Ready("guest")

	clock.Advance(time.Second) // move past the autoplay guard
	sender.reset()

	require.NoError(t, room.ApplyHostAction("host", model.ActionPlay, 42))
	clock.Advance(100 * time.Millisecond)
	require.NoError(t, room.ApplyHostAction("host", model.ActionPlay, 42.1))
	assert.Len(t, sender.byKind(model.KindSyncPlayback), 1, "duplicate PLAY inside the window must be swallowed")

	clock.Advance(10 * time.Millisecond)
	require.NoError(t, room.ApplyHostAction("host", model.ActionPause, 42.2))
	assert.Len(t, sender.byKind(model.KindSyncPlayback), 2, "a genuine PAUSE right after must pass")

	clock.Advance(600 * time.Millisecond)
	require.NoError(t, room.ApplyHostAction("host", model.ActionPause, 50))
	assert.Len(t, sender.byKind(model.KindSyncPlayback), 3, "same type outside the window must pass")
}

func TestChangeVideoAbsorbsAutoplayEcho(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)
	room.Ready("guest")

	require.NoError(t, room.ChangeVideo("host", "abc123"))
	sender.reset()

	clock.Advance(50 * time.Millisecond)
	require.NoError(t, room.ApplyHostAction("host", model.ActionPlay, 0))
	assert.Empty(t, sender.byKind(model.KindSyncPlayback))
}

func TestSyncGatedOnReadiness(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	require.NoError(t, room.ChangeVideo("host", "abc123"))
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)

	clock.Advance(time.Second)
	sender.reset()

	require.NoError(t, room.ApplyHostAction("host", model.ActionPause, 10))
	assert.Empty(t, sender.forMember("guest", model.KindSyncPlayback))

	room.Ready("guest")
	clock.Advance(time.Second)
	require.NoError(t, room.ApplyHostAction("host", model.ActionPlay, 10))

	syncs := sender.forMember("guest", model.KindSyncPlayback)
	require.Len(t, syncs, 1)
	payload, ok := syncs[0].Data.(model.SyncPlaybackPayload)
	require.True(t, ok)
	assert.Equal(t, model.ActionPlay, payload.Type)
	assert.Equal(t, 10.0, payload.Time)
}

func TestChangeVideoScenario(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)

	require.NoError(t, room.ChangeVideo("host", "abc123"))

	snap := room.Snapshot()
	assert.Equal(t, "abc123", snap.VideoID)
	assert.Equal(t, model.StatePlaying, snap.State)
	assert.Equal(t, 0.0, snap.Position)
	assert.Equal(t, clock.Now(), snap.CapturedAt)

	// only the host is present; it is the sole set-video recipient
	setVideos := sender.byKind(model.KindSetVideo)
	require.Len(t, setVideos, 1)
	assert.Equal(t, "host", setVideos[0].memberID)

	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)
	states := sender.forMember("guest", model.KindRoomState)
	require.Len(t, states, 1)
	guestSnap, ok := states[0].Data.(model.RoomSnapshot)
	require.True(t, ok)
	assert.Equal(t, "abc123", guestSnap.VideoID)
	assert.Equal(t, model.StatePlaying, guestSnap.State)
	assert.Equal(t, 0.0, guestSnap.Position)
}

func TestChangeVideoRemovesQueueItem(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	require.NoError(t, room.Suggest("host", "queued1", "Queued Song"))
	require.Len(t, room.Snapshot().Queue, 1)

	sender.reset()
	require.NoError(t, room.ChangeVideo("host", "queued1"))

	assert.Empty(t, room.Snapshot().Queue)
	setVideos := sender.byKind(model.KindSetVideo)
	require.NotEmpty(t, setVideos)
	payload, ok := setVideos[0].ev.Data.(model.SetVideoPayload)
	require.True(t, ok)
	assert.Equal(t, "queued1", payload.VideoID)
	assert.Empty(t, payload.Queue)
}

func TestChangeVideoValidation(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)

	assert.ErrorIs(t, room.ChangeVideo("guest", "abc123"), ErrNotHost)
	assert.ErrorIs(t, room.ChangeVideo("host", ""), ErrInvalidVideo)
}

func TestVoteIdempotent(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)
	require.NoError(t, room.Suggest("guest", "track1", "Track One"))

	sender.reset()
	assert.True(t, room.Vote("guest", "track1"))
	assert.False(t, room.Vote("guest", "track1"))
	assert.False(t, room.Vote("guest", "track1"))

	snap := room.Snapshot()
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, 1, snap.Queue[0].Votes)
	assert.Len(t, sender.byKind(model.KindUpdateQueue), 2, "only the first vote broadcasts, to every member")
}

func TestVoteOnMissingTrackIsSilent(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)

	sender.reset()
	assert.False(t, room.Vote("host", "gone"))
	assert.Empty(t, sender.byKind(model.KindUpdateQueue))
}

func TestSuggestCooldown(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)

	require.NoError(t, room.Suggest("guest", "t1", "First"))

	clock.Advance(30 * time.Second)
	err = room.Suggest("guest", "t2", "Second")
	assert.ErrorIs(t, err, ErrCooldownActive)
	assert.Len(t, room.Snapshot().Queue, 1)

	// another member is not affected by this member's cooldown
	require.NoError(t, room.Suggest("host", "t3", "Third"))

	clock.Advance(30 * time.Second)
	require.NoError(t, room.Suggest("guest", "t2", "Second"))
	assert.Len(t, room.Snapshot().Queue, 3)
}

func TestSuggestRejectsDuplicateTrack(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)

	require.NoError(t, room.Suggest("host", "t1", "First"))
	assert.ErrorIs(t, room.Suggest("guest", "t1", "First"), ErrDuplicateTrack)
}

func TestPlayTopVotedTieBreak(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	for _, m := range []struct{ id, name string }{
		{"host", "Host"}, {"g1", "One"}, {"g2", "Two"},
	} {
		_, err := room.Join(m.id, m.name)
		require.NoError(t, err)
	}

	require.NoError(t, room.Suggest("g1", "trackA", "A"))
	clock.Advance(time.Second)
	require.NoError(t, room.Suggest("g2", "trackB", "B"))

	for _, voter := range []string{"host", "g1", "g2"} {
		require.True(t, room.Vote(voter, "trackA"))
		require.True(t, room.Vote(voter, "trackB"))
	}

	item, err := room.PlayTopVoted("host")
	require.NoError(t, err)
	assert.Equal(t, "trackA", item.ID, "earliest suggestion wins the tie")
	assert.Equal(t, 3, item.Votes)

	snap := room.Snapshot()
	assert.Equal(t, "trackA", snap.VideoID)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "trackB", snap.Queue[0].ID)
}

func TestPlayTopVotedRejections(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)

	_, err = room.PlayTopVoted("guest")
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = room.PlayTopVoted("host")
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestSendMessage(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)

	_, err = room.SendMessage("guest", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	sender.reset()
	msg, err := room.SendMessage("guest", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "Guest", msg.User)
	assert.Equal(t, "hello there", msg.Text)
	assert.NotEmpty(t, msg.ID)

	// broadcast reaches everyone, sender included
	assert.Len(t, sender.forMember("host", model.KindNewMessage), 1)
	assert.Len(t, sender.forMember("guest", model.KindNewMessage), 1)

	chat := room.Snapshot().Chat
	require.NotEmpty(t, chat)
	assert.Equal(t, "hello there", chat[len(chat)-1].Text)
}

func TestSendMessageUnknownMember(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)

	_, err = room.SendMessage("stranger", "hi")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestHostLeaveClosesRoom(t *testing.T) {
	clock := newFakeClock()
	room, sender := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("g1", "One")
	require.NoError(t, err)
	_, err = room.Join("g2", "Two")
	require.NoError(t, err)

	sender.reset()
	hostLeft, _ := room.Leave("host")
	assert.True(t, hostLeft)
	assert.True(t, room.Closed())

	assert.Len(t, sender.forMember("g1", model.KindHostLeft), 1)
	assert.Len(t, sender.forMember("g2", model.KindHostLeft), 1)

	_, err = room.Join("g3", "Three")
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestGuestLeaveKeepsRoomOpen(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)
	_, err = room.Join("guest", "Guest")
	require.NoError(t, err)

	hostLeft, empty := room.Leave("guest")
	assert.False(t, hostLeft)
	assert.False(t, empty)
	assert.False(t, room.Closed())
}

func TestHydrateChatPrependsHistory(t *testing.T) {
	clock := newFakeClock()
	room, _ := newTestRoom(clock, 5)

	_, err := room.Join("host", "Host")
	require.NoError(t, err)

	room.HydrateChat([]model.ChatMessage{
		{ID: "old1", User: "Past", Text: "from a previous party", SentAt: clock.Now().Add(-time.Hour)},
	})

	chat := room.Snapshot().Chat
	require.NotEmpty(t, chat)
	assert.Equal(t, "old1", chat[0].ID)
}
