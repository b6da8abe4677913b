package rooms

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/virtualdj/server/backend/model"
)

var (
	ErrNotHost        = errors.New("only the host can control playback")
	ErrNoActiveVideo  = errors.New("no active video")
	ErrUnknownAction  = errors.New("unknown playback action")
	ErrInvalidVideo   = errors.New("invalid video id")
	ErrCooldownActive = errors.New("suggestion cooldown active")
	ErrDuplicateTrack = errors.New("track already in queue")
	ErrNoCandidate    = errors.New("queue is empty")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomClosed     = errors.New("room is closed")
	ErrNotMember      = errors.New("not a member of this room")
	ErrEmptyMessage   = errors.New("message is empty")
)

const systemUser = "System"

// Sender delivers an event to one connected member. Implementations must
// not block: the room calls Send while holding its lock so that events
// are queued in the exact order mutations were applied.
type Sender interface {
	Send(roomID, memberID string, ev model.Event)
}

type member struct {
	id       string
	name     string
	role     model.Role
	ready    bool
	joinedAt time.Time
}

// Room is one watch-party session. All mutating operations serialize on a
// single mutex; operations on different rooms are independent.
type Room struct {
	code      string
	maxGuests int
	createdAt time.Time
	chatLimit int
	debounce  time.Duration
	sender    Sender
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	closed   bool
	hostID   string
	members  map[string]*member
	queue    *queueStore
	playback playbackState
	cooldown *cooldownTracker
	chat     []model.ChatMessage

	// debounce state for host playback transitions
	lastAction   string
	lastActionAt time.Time
}

func newRoom(code string, maxGuests int, cfg Config, sender Sender, logger zerolog.Logger) *Room {
	now := cfg.Now()
	return &Room{
		code:      code,
		maxGuests: maxGuests,
		createdAt: now,
		chatLimit: cfg.RecentChatLimit,
		debounce:  cfg.DebounceWindow,
		sender:    sender,
		logger:    logger.With().Str("room", code).Logger(),
		now:       cfg.Now,
		members:   make(map[string]*member),
		queue:     newQueueStore(),
		playback:  newPlaybackState(now),
		cooldown:  newCooldownTracker(cfg.SuggestionCooldown),
	}
}

// Join adds a member and sends it a room-state snapshot. The first member
// to join becomes the host; everyone after that is a guest while capacity
// allows. The host is implicitly ready, guests must signal readiness
// before playback syncs are delivered to them.
func (r *Room) Join(memberID, name string) (model.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRoomClosed
	}
	if m, ok := r.members[memberID]; ok {
		// reconnect: keep role and readiness, resend the snapshot
		m.name = name
		r.sender.Send(r.code, memberID, model.Event{Kind: model.KindRoomState, Data: r.snapshotLocked()})
		return m.role, nil
	}

	role := model.RoleGuest
	if r.hostID == "" {
		role = model.RoleHost
		r.hostID = memberID
	} else if r.guestCountLocked() >= r.maxGuests {
		return "", ErrRoomFull
	}

	r.members[memberID] = &member{
		id:       memberID,
		name:     name,
		role:     role,
		ready:    role == model.RoleHost,
		joinedAt: r.now(),
	}

	r.appendSystemLocked(name + " joined the party")
	r.sender.Send(r.code, memberID, model.Event{Kind: model.KindRoomState, Data: r.snapshotLocked()})

	r.logger.Debug().
		Str("memberID", memberID).
		Str("role", string(role)).
		Int("members", len(r.members)).
		Msg("member joined")
	return role, nil
}

// Leave removes a member. A departing host closes the room: remaining
// members get a host-left notice and no failover takes place.
func (r *Room) Leave(memberID string) (hostLeft, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[memberID]
	if !ok {
		return false, len(r.members) == 0
	}
	delete(r.members, memberID)

	if memberID == r.hostID && !r.closed {
		r.closed = true
		r.broadcastLocked(model.Event{
			Kind: model.KindHostLeft,
			Data: model.HostLeftPayload{Message: "The host has left. This party is over."},
		}, nil)
		r.logger.Debug().Str("memberID", memberID).Msg("host left, room closed")
		return true, len(r.members) == 0
	}

	r.appendSystemLocked(m.name + " left the party")
	r.logger.Debug().Str("memberID", memberID).Int("members", len(r.members)).Msg("member left")
	return false, len(r.members) == 0
}

// Ready marks a guest as having completed its local join handshake.
// Until then the room withholds sync-playback events from it.
func (r *Room) Ready(memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[memberID]; ok {
		m.ready = true
	}
}

// ApplyHostAction propagates a host PLAY/PAUSE transition to ready guests.
// Emission is edge-triggered and debounced: a repeat of the last emitted
// type inside the guard window is swallowed without touching state, so
// duplicate events from the player widget cannot make guests re-seek.
func (r *Room) ApplyHostAction(memberID, action string, position float64) error {
	if action != model.ActionPlay && action != model.ActionPause {
		return ErrUnknownAction
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if memberID != r.hostID {
		return ErrNotHost
	}
	if r.playback.videoID == "" {
		return ErrNoActiveVideo
	}

	now := r.now()
	if action == r.lastAction && now.Sub(r.lastActionAt) < r.debounce {
		r.logger.Debug().Str("action", action).Msg("duplicate transition suppressed")
		return nil
	}
	r.lastAction = action
	r.lastActionAt = now

	r.playback.apply(action, position, now)
	r.broadcastLocked(model.Event{
		Kind: model.KindSyncPlayback,
		Data: model.SyncPlaybackPayload{Type: action, Time: position},
	}, r.readyGuestsLocked())
	return nil
}

// ChangeVideo switches the room to a new video, removing it from the
// queue when it was suggested there. Queue and video travel in one
// set-video broadcast so clients reconcile both without racing.
func (r *Room) ChangeVideo(memberID, videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changeVideoLocked(memberID, videoID)
}

func (r *Room) changeVideoLocked(memberID, videoID string) error {
	if r.closed {
		return ErrRoomClosed
	}
	if memberID != r.hostID {
		return ErrNotHost
	}
	if videoID == "" {
		return ErrInvalidVideo
	}

	now := r.now()
	r.queue.remove(videoID)
	r.playback.setVideo(videoID, now)

	// the widget fires PLAY when the new video autostarts; absorb that echo
	r.lastAction = model.ActionPlay
	r.lastActionAt = now

	r.broadcastLocked(model.Event{
		Kind: model.KindSetVideo,
		Data: model.SetVideoPayload{VideoID: videoID, Queue: r.queue.view()},
	}, nil)
	r.logger.Debug().Str("videoID", videoID).Msg("video changed")
	return nil
}

// Suggest appends a track to the queue, subject to the per-member
// suggestion cooldown. A fresh cooldown window starts on every accepted
// suggestion.
func (r *Room) Suggest(memberID, trackID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	m, ok := r.members[memberID]
	if !ok {
		return ErrNotMember
	}
	if trackID == "" {
		return ErrInvalidVideo
	}
	for _, item := range r.queue.view() {
		if item.ID == trackID {
			return ErrDuplicateTrack
		}
	}
	if !r.cooldown.allow(memberID, r.now()) {
		return ErrCooldownActive
	}

	if title == "" {
		title = trackID
	}
	r.queue.add(trackID, title, m.name, r.now())
	r.broadcastLocked(model.Event{Kind: model.KindUpdateQueue, Data: r.queue.view()}, nil)
	return nil
}

// Vote records an idempotent vote. Voting twice or voting on a track that
// was just played is a benign race and stays silent; the next update-queue
// broadcast self-corrects the voter's view.
func (r *Room) Vote(memberID, trackID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if !r.queue.vote(memberID, trackID) {
		return false
	}
	r.broadcastLocked(model.Event{Kind: model.KindUpdateQueue, Data: r.queue.view()}, nil)
	return true
}

// PlayTopVoted promotes the highest-voted track; ties go to the earliest
// suggestion so the outcome is deterministic.
func (r *Room) PlayTopVoted(memberID string) (model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.QueueItem{}, ErrRoomClosed
	}
	if memberID != r.hostID {
		return model.QueueItem{}, ErrNotHost
	}
	top := r.queue.topVoted()
	if top == nil {
		return model.QueueItem{}, ErrNoCandidate
	}
	item := model.QueueItem{
		ID:          top.id,
		Title:       top.title,
		SuggestedBy: top.suggestedBy,
		Votes:       len(top.voters),
		CreatedAt:   top.createdAt,
	}
	if err := r.changeVideoLocked(memberID, top.id); err != nil {
		return model.QueueItem{}, err
	}
	return item, nil
}

// SendMessage appends to the room log and broadcasts to every member,
// including the sender. Persistence is the caller's concern.
func (r *Room) SendMessage(memberID, text string) (model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.ChatMessage{}, ErrRoomClosed
	}
	m, ok := r.members[memberID]
	if !ok {
		return model.ChatMessage{}, ErrNotMember
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}

	msg := model.ChatMessage{
		ID:     uuid.NewString(),
		User:   m.name,
		Text:   text,
		SentAt: r.now(),
	}
	r.appendChatLocked(msg)
	r.broadcastLocked(model.Event{Kind: model.KindNewMessage, Data: msg}, nil)
	return msg, nil
}

// HydrateChat seeds the room log with persisted history. Best-effort:
// called once right after creation, before guests pile in.
func (r *Room) HydrateChat(history []model.ChatMessage) {
	if len(history) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := make([]model.ChatMessage, 0, len(history)+len(r.chat))
	merged = append(merged, history...)
	merged = append(merged, r.chat...)
	if len(merged) > r.chatLimit {
		merged = merged[len(merged)-r.chatLimit:]
	}
	r.chat = merged
}

// Snapshot returns a consistent point-in-time view of the room.
func (r *Room) Snapshot() model.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) Code() string { return r.code }

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Room) guestCountLocked() int {
	n := len(r.members)
	if _, ok := r.members[r.hostID]; ok {
		n--
	}
	return n
}

func (r *Room) readyGuestsLocked() []string {
	ids := make([]string, 0, len(r.members))
	for id, m := range r.members {
		if id != r.hostID && m.ready {
			ids = append(ids, id)
		}
	}
	return ids
}

// broadcastLocked fans out to the given members, or to everyone when the
// recipient list is nil. Must be called with the lock held so broadcasts
// leave in apply order.
func (r *Room) broadcastLocked(ev model.Event, recipients []string) {
	if recipients == nil {
		for id := range r.members {
			r.sender.Send(r.code, id, ev)
		}
		return
	}
	for _, id := range recipients {
		r.sender.Send(r.code, id, ev)
	}
}

func (r *Room) appendSystemLocked(text string) {
	msg := model.ChatMessage{
		ID:     uuid.NewString(),
		User:   systemUser,
		Text:   text,
		SentAt: r.now(),
	}
	r.appendChatLocked(msg)
	r.broadcastLocked(model.Event{Kind: model.KindNewMessage, Data: msg}, nil)
}

func (r *Room) appendChatLocked(msg model.ChatMessage) {
	r.chat = append(r.chat, msg)
	if len(r.chat) > r.chatLimit {
		r.chat = r.chat[len(r.chat)-r.chatLimit:]
	}
}

func (r *Room) snapshotLocked() model.RoomSnapshot {
	chat := make([]model.ChatMessage, len(r.chat))
	copy(chat, r.chat)
	return model.RoomSnapshot{
		RoomID:     r.code,
		HostID:     r.hostID,
		VideoID:    r.playback.videoID,
		State:      r.playback.state,
		Position:   r.playback.position,
		CapturedAt: r.playback.capturedAt,
		Queue:      r.queue.view(),
		Chat:       chat,
		MaxGuests:  r.maxGuests,
	}
}
