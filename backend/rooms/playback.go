package rooms

import (
	"time"

	"github.com/virtualdj/server/backend/model"
)

// playbackState is the room's transport position, stored as the pair
// {position, capturedAt}. The true position while playing is
// position + (now - capturedAt); holding the pair instead of a ticking
// counter means reads never race the wall clock.
type playbackState struct {
	videoID    string
	state      model.TransportState
	position   float64
	capturedAt time.Time
}

func newPlaybackState(now time.Time) playbackState {
	return playbackState{
		state:      model.StateIdle,
		capturedAt: now,
	}
}

func (p *playbackState) apply(action string, position float64, now time.Time) {
	if action == model.ActionPlay {
		p.state = model.StatePlaying
	} else {
		p.state = model.StatePaused
	}
	p.position = position
	p.capturedAt = now
}

func (p *playbackState) setVideo(videoID string, now time.Time) {
	p.videoID = videoID
	p.state = model.StatePlaying
	p.position = 0
	p.capturedAt = now
}

// truePosition translates the stored pair to the live position.
func (p *playbackState) truePosition(now time.Time) float64 {
	if p.state != model.StatePlaying {
		return p.position
	}
	return p.position + now.Sub(p.capturedAt).Seconds()
}
