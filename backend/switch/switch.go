package _switch

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/virtualdj/server/backend/model"
)

// Switch holds the wires of connected members, keyed by room and member,
// and fans room events out to them. Sends never block: the room session
// calls Send while serialized, and per-wire buffered channels preserve
// that order for each member. A member that cannot drain its wire loses
// events rather than stalling the room.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]map[string]model.Wire
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]map[string]model.Wire),
	}
}

func (sw *Switch) Connect(roomID, memberID string, wire model.Wire) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("memberID", memberID).
			Msg("wire connected")
	}()

	room, ok := sw.fwd[roomID]
	if !ok {
		room = make(map[string]model.Wire)
	}
	room[memberID] = wire
	sw.fwd[roomID] = room
}

func (sw *Switch) Disconnect(roomID, memberID string) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("memberID", memberID).
			Msg("wire disconnected")
	}()

	room, ok := sw.fwd[roomID]
	if !ok {
		return
	}
	delete(room, memberID)
	if len(room) == 0 {
		delete(sw.fwd, roomID)
	}
}

// Send queues an event on a member's wire. Unknown destinations and full
// wires are dropped; broadcasts are fire-and-forget and never carry
// delivery errors back to the room.
func (sw *Switch) Send(roomID, memberID string, ev model.Event) {
	sw.mx.RLock()
	wire, ok := sw.fwd[roomID][memberID]
	sw.mx.RUnlock()
	if !ok {
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("memberID", memberID).
			Str("kind", ev.Kind).
			Msg("cannot forward, dst not found")
		return
	}

	select {
	case wire.TX <- ev:
	default:
		sw.logger.Warn().
			Str("roomID", roomID).
			Str("memberID", memberID).
			Str("kind", ev.Kind).
			Msg("wire full, event dropped")
	}
}
