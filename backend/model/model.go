package model

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleHost  Role = "HOST"
	RoleGuest Role = "GUEST"
)

// Host playback actions as reported by the player widget.
const (
	ActionPlay  = "PLAY"
	ActionPause = "PAUSE"
)

type TransportState string

const (
	StatePlaying TransportState = "PLAYING"
	StatePaused  TransportState = "PAUSED"
	StateIdle    TransportState = "IDLE"
)

type QueueItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SuggestedBy string    `json:"suggestedBy"`
	Votes       int       `json:"votes"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ChatMessage struct {
	ID     string    `json:"id"`
	User   string    `json:"user"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// RoomSnapshot is the full room state sent once per successful join.
//
// Position is the stored value captured at CapturedAt, not the live one.
// While State is PLAYING the receiver must translate it to
// Position + (now - CapturedAt) before seeking, otherwise every guest
// starts a fixed offset behind the host.
type RoomSnapshot struct {
	RoomID     string         `json:"roomId"`
	HostID     string         `json:"hostId"`
	VideoID    string         `json:"currentVideoId"`
	State      TransportState `json:"playbackState"`
	Position   float64        `json:"lastSeekTime"`
	CapturedAt time.Time      `json:"capturedAt"`
	Queue      []QueueItem    `json:"queue"`
	Chat       []ChatMessage  `json:"chat"`
	MaxGuests  int            `json:"maxGuests"`
}

type SearchResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
}

// Event is an outbound message to one or more members.
type Event struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// InboundEnvelope is a client message before payload decoding.
type InboundEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Wire carries outbound events to a single connected member. Sends are
// non-blocking; a full buffer means the member is too slow and events
// for it are dropped (the next snapshot-carrying broadcast self-corrects).
type Wire struct {
	TX chan Event
}

const defaultWireBuffer = 32

func NewWire() Wire {
	return Wire{TX: make(chan Event, defaultWireBuffer)}
}
