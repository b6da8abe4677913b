package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtualdj/server/backend/catalog"
	"github.com/virtualdj/server/backend/history"
	"github.com/virtualdj/server/backend/identity"
	"github.com/virtualdj/server/backend/model"
	"github.com/virtualdj/server/backend/rooms"
)

const (
	historyWriteTimeout = 2 * time.Second
	hydrateTimeout      = 2 * time.Second
	hydrateLimit        = 50
)

var (
	ErrCreate = errors.New("unable to create room")
	ErrJoin   = errors.New("unable to join room")
)

type (
	// Fanout connects member wires and delivers events to them.
	Fanout interface {
		Connect(roomID, memberID string, wire model.Wire)
		Disconnect(roomID, memberID string)
		Send(roomID, memberID string, ev model.Event)
	}

	Config struct {
		Directory *rooms.Directory
		Fanout    Fanout
		History   history.Store
		Catalog   catalog.Searcher
		Logger    *zerolog.Logger
	}

	// Service routes client commands to room sessions and fans the results
	// out to collaborators that must never run under a room lock.
	Service struct {
		dir     *rooms.Directory
		fanout  Fanout
		history history.Store
		catalog catalog.Searcher
		logger  zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		dir:     cfg.Directory,
		fanout:  cfg.Fanout,
		history: cfg.History,
		catalog: cfg.Catalog,
		logger:  cfg.Logger.With().Str("component", "api").Logger(),
	}
}

// CreateRoom registers a hostless room and seeds its chat log from the
// history store in the background.
func (svc *Service) CreateRoom(maxGuests int) (string, error) {
	room, err := svc.dir.Create(maxGuests)
	if err != nil {
		return "", errors.Join(ErrCreate, err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
		defer cancel()
		msgs, err := svc.history.ReadRecent(ctx, room.Code(), hydrateLimit)
		if err != nil {
			svc.logger.Warn().Err(err).Str("roomID", room.Code()).Msg("chat hydration failed")
			return
		}
		room.HydrateChat(msgs)
	}()

	return room.Code(), nil
}

// Join attaches a member's wire and adds it to the room. The room sends
// the room-state snapshot on the freshly connected wire itself, so the
// snapshot always precedes any broadcast the member is included in.
func (svc *Service) Join(roomID string, id identity.Identity, wire model.Wire) (model.Role, error) {
	room, err := svc.dir.Resolve(roomID)
	if err != nil {
		return "", errors.Join(ErrJoin, err)
	}

	svc.fanout.Connect(roomID, id.UID, wire)
	role, err := room.Join(id.UID, id.DisplayName)
	if err != nil {
		svc.fanout.Disconnect(roomID, id.UID)
		return "", errors.Join(ErrJoin, err)
	}

	svc.logger.Debug().
		Str("memberID", id.UID).
		Str("roomID", roomID).
		Str("role", string(role)).
		Msg("member joined room")
	return role, nil
}

// Leave detaches the wire and applies room lifecycle (host departure
// closes the room, an empty room is closed after the grace period).
func (svc *Service) Leave(roomID, memberID string) {
	svc.fanout.Disconnect(roomID, memberID)
	room, err := svc.dir.Resolve(roomID)
	if err != nil {
		return
	}
	svc.dir.Depart(room, memberID)
	svc.logger.Debug().
		Str("memberID", memberID).
		Str("roomID", roomID).
		Msg("member left room")
}

// Dispatch applies one inbound envelope to its room. Rejections are
// answered with an ack on the sender's wire only; benign races stay
// silent; broadcasts are emitted by the room itself.
func (svc *Service) Dispatch(roomID, memberID string, authenticated bool, env model.InboundEnvelope) {
	room, err := svc.dir.Resolve(roomID)
	if err != nil {
		svc.nack(roomID, memberID, env.Kind, "room not found")
		return
	}

	switch env.Kind {
	case model.KindHostAction:
		var p model.HostActionPayload
		if !svc.decode(roomID, memberID, env, &p) {
			return
		}
		if err := room.ApplyHostAction(memberID, p.Type, p.Time); err != nil {
			svc.nack(roomID, memberID, env.Kind, rejectionMessage(err))
		}

	case model.KindChangeVideo:
		var p model.ChangeVideoPayload
		if !svc.decode(roomID, memberID, env, &p) {
			return
		}
		if err := room.ChangeVideo(memberID, p.VideoID); err != nil {
			svc.nack(roomID, memberID, env.Kind, rejectionMessage(err))
		}

	case model.KindSuggestTrack:
		var p model.SuggestTrackPayload
		if !svc.decode(roomID, memberID, env, &p) {
			return
		}
		svc.suggest(room, memberID, p)

	case model.KindVoteTrack:
		var p model.VoteTrackPayload
		if !svc.decode(roomID, memberID, env, &p) {
			return
		}
		room.Vote(memberID, p.VideoID)

	case model.KindPlayTopVoted:
		if _, err := room.PlayTopVoted(memberID); err != nil {
			svc.nack(roomID, memberID, env.Kind, rejectionMessage(err))
		}

	case model.KindSendMessage:
		var p model.SendMessagePayload
		if !svc.decode(roomID, memberID, env, &p) {
			return
		}
		msg, err := room.SendMessage(memberID, p.Text)
		if err != nil {
			svc.nack(roomID, memberID, env.Kind, rejectionMessage(err))
			return
		}
		if authenticated {
			svc.persist(roomID, msg)
		}

	case model.KindReady:
		room.Ready(memberID)

	default:
		svc.fanout.Send(roomID, memberID, model.Event{
			Kind: model.KindError,
			Data: model.AckPayload{Kind: env.Kind, Message: "unknown message kind"},
		})
	}
}

func (svc *Service) suggest(room *rooms.Room, memberID string, p model.SuggestTrackPayload) {
	ack := model.AckPayload{Kind: model.KindSuggestTrack}
	switch err := room.Suggest(memberID, p.VideoID, p.Title); {
	case err == nil:
		// cooldownActive on success lets the client start its countdown
		ack.Success = true
		ack.CooldownActive = true
	case errors.Is(err, rooms.ErrCooldownActive):
		ack.CooldownActive = true
		ack.Message = "You are suggesting too fast, wait for the cooldown."
	default:
		ack.Message = rejectionMessage(err)
	}
	svc.fanout.Send(room.Code(), memberID, model.Event{Kind: model.KindAck, Data: ack})
}

// Search proxies the catalog collaborator. Upstream failure surfaces as
// an empty result set, never as a room-level error.
func (svc *Service) Search(ctx context.Context, query string, limit int) []model.SearchResult {
	results, err := svc.catalog.Search(ctx, query, limit)
	if err != nil {
		svc.logger.Warn().Err(err).Str("query", query).Msg("catalog search failed")
		return []model.SearchResult{}
	}
	return results
}

// persist writes a chat message to the history store without blocking the
// broadcast that already went out.
func (svc *Service) persist(roomID string, msg model.ChatMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := svc.history.Append(ctx, roomID, msg); err != nil {
			svc.logger.Warn().Err(err).Str("roomID", roomID).Msg("history append failed")
		}
	}()
}

func (svc *Service) decode(roomID, memberID string, env model.InboundEnvelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		svc.logger.Debug().Err(err).Str("kind", env.Kind).Msg("malformed payload")
		svc.nack(roomID, memberID, env.Kind, "malformed payload")
		return false
	}
	return true
}

func (svc *Service) nack(roomID, memberID, kind, message string) {
	svc.fanout.Send(roomID, memberID, model.Event{
		Kind: model.KindAck,
		Data: model.AckPayload{Kind: kind, Message: message},
	})
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, rooms.ErrNotHost):
		return "Only the host can do that."
	case errors.Is(err, rooms.ErrNoActiveVideo):
		return "No video is playing yet."
	case errors.Is(err, rooms.ErrNoCandidate):
		return "The queue is empty."
	case errors.Is(err, rooms.ErrDuplicateTrack):
		return "That track is already in the queue."
	case errors.Is(err, rooms.ErrEmptyMessage):
		return "Cannot send an empty message."
	case errors.Is(err, rooms.ErrRoomClosed):
		return "This room is closed."
	default:
		return err.Error()
	}
}
