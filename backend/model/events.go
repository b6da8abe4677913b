package model

// Inbound message kinds.
const (
	KindHostAction   = "host-action"
	KindChangeVideo  = "host-change-video"
	KindSuggestTrack = "suggest-track"
	KindVoteTrack    = "vote-track"
	KindPlayTopVoted = "play-top-voted"
	KindSendMessage  = "send-message"
	KindReady        = "ready"
)

// Outbound event kinds.
const (
	KindRoomState    = "room-state"
	KindSyncPlayback = "sync-playback"
	KindSetVideo     = "set-video"
	KindUpdateQueue  = "update-queue"
	KindNewMessage   = "new-message"
	KindHostLeft     = "host-left"
	KindAck          = "ack"
	KindError        = "error"
)

type HostActionPayload struct {
	Type string  `json:"type"` // PLAY or PAUSE
	Time float64 `json:"time"`
}

type ChangeVideoPayload struct {
	VideoID string `json:"videoId"`
}

type SuggestTrackPayload struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
}

type VoteTrackPayload struct {
	VideoID string `json:"videoId"`
}

type SendMessagePayload struct {
	Text string `json:"text"`
}

type SyncPlaybackPayload struct {
	Type string  `json:"type"`
	Time float64 `json:"time"`
}

type SetVideoPayload struct {
	VideoID string      `json:"videoId"`
	Queue   []QueueItem `json:"queue"`
}

type HostLeftPayload struct {
	Message string `json:"message"`
}

// AckPayload answers an inbound message on the sender's wire.
// CooldownActive is set on suggest-track acks so the client can start
// its local countdown regardless of whether the suggestion was accepted.
type AckPayload struct {
	Kind           string `json:"kind"`
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	CooldownActive bool   `json:"cooldownActive,omitempty"`
}
