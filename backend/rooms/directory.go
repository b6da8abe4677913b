package rooms

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrCapacityInvalid = errors.New("invalid guest capacity")
)

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6

	defaultMinGuests          = 2
	defaultMaxGuests          = 50
	defaultSuggestionCooldown = 60 * time.Second
	defaultDebounceWindow     = 500 * time.Millisecond
	defaultRecentChatLimit    = 50
	defaultEmptyRoomGrace     = time.Minute
)

type Config struct {
	// MinGuests..MaxGuests is the allowed range for a room's capacity.
	MinGuests          int
	MaxGuests          int
	SuggestionCooldown time.Duration
	DebounceWindow     time.Duration
	RecentChatLimit    int
	// EmptyRoomGrace is how long an empty room survives before the
	// directory discards it. Zero closes empty rooms immediately.
	EmptyRoomGrace time.Duration
	Now            func() time.Time
}

func (cfg *Config) withDefaults() {
	if cfg.MinGuests == 0 {
		cfg.MinGuests = defaultMinGuests
	}
	if cfg.MaxGuests == 0 {
		cfg.MaxGuests = defaultMaxGuests
	}
	if cfg.SuggestionCooldown == 0 {
		cfg.SuggestionCooldown = defaultSuggestionCooldown
	}
	if cfg.DebounceWindow == 0 {
		cfg.DebounceWindow = defaultDebounceWindow
	}
	if cfg.RecentChatLimit == 0 {
		cfg.RecentChatLimit = defaultRecentChatLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
}

// Directory is the process-wide registry of live rooms, keyed by room code.
type Directory struct {
	cfg    Config
	sender Sender
	logger zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewDirectory(cfg Config, sender Sender, logger *zerolog.Logger) *Directory {
	cfg.withDefaults()
	return &Directory{
		cfg:    cfg,
		sender: sender,
		logger: logger.With().Str("component", "room-directory").Logger(),
		rooms:  make(map[string]*Room),
	}
}

// Create registers an empty, hostless room and returns it. The first
// member to join becomes the host.
func (d *Directory) Create(maxGuests int) (*Room, error) {
	if maxGuests < d.cfg.MinGuests || maxGuests > d.cfg.MaxGuests {
		return nil, ErrCapacityInvalid
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	code := d.newCodeLocked()
	room := newRoom(code, maxGuests, d.cfg, d.sender, d.logger)
	d.rooms[code] = room

	// a room nobody ever joins has no departure to trigger cleanup
	if d.cfg.EmptyRoomGrace > 0 {
		time.AfterFunc(d.cfg.EmptyRoomGrace, func() {
			d.closeIfStillEmpty(room)
		})
	}

	d.logger.Info().Str("room", code).Int("maxGuests", maxGuests).Msg("room created")
	return room, nil
}

func (d *Directory) Resolve(code string) (*Room, error) {
	d.mu.RLock()
	room, ok := d.rooms[code]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Close removes and discards a room. Idempotent.
func (d *Directory) Close(code string) {
	d.mu.Lock()
	room, ok := d.rooms[code]
	if ok {
		delete(d.rooms, code)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	if d.logger.GetLevel() <= zerolog.TraceLevel {
		d.logger.Trace().Str("state", spew.Sdump(room.Snapshot())).Msg("discarded room state")
	}
	d.logger.Info().Str("room", code).Msg("room closed")
}

// Depart removes a member from its room and applies room lifecycle: a host
// departure closes the room right away, an empty room is closed after the
// grace period unless someone came back in the meantime.
func (d *Directory) Depart(room *Room, memberID string) {
	hostLeft, empty := room.Leave(memberID)
	if hostLeft {
		d.Close(room.Code())
		return
	}
	if !empty {
		return
	}
	if d.cfg.EmptyRoomGrace == 0 {
		d.closeIfStillEmpty(room)
		return
	}
	time.AfterFunc(d.cfg.EmptyRoomGrace, func() {
		d.closeIfStillEmpty(room)
	})
}

// closeIfStillEmpty guards against a rejoin racing the cleanup: the room
// is only dropped when it is still the registered instance and still empty.
func (d *Directory) closeIfStillEmpty(room *Room) {
	if room.MemberCount() > 0 {
		return
	}
	d.mu.Lock()
	current, ok := d.rooms[room.Code()]
	if ok && current == room && room.MemberCount() == 0 {
		delete(d.rooms, room.Code())
		d.mu.Unlock()
		d.logger.Info().Str("room", room.Code()).Msg("empty room closed")
		return
	}
	d.mu.Unlock()
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

func (d *Directory) newCodeLocked() string {
	for {
		buf := make([]byte, roomCodeLength)
		for i := range buf {
			buf[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
		}
		code := string(buf)
		if _, exists := d.rooms[code]; !exists {
			return code
		}
	}
}
