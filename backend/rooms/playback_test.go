package rooms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/virtualdj/server/backend/model"
)

func TestPlaybackStartsIdle(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := newPlaybackState(now)

	assert.Equal(t, model.StateIdle, p.state)
	assert.Empty(t, p.videoID)
	assert.Equal(t, now, p.capturedAt)
}

func TestPlaybackApply(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := newPlaybackState(now)
	p.setVideo("abc123", now)

	later := now.Add(10 * time.Second)
	p.apply(model.ActionPause, 42.5, later)
	assert.Equal(t, model.StatePaused, p.state)
	assert.Equal(t, 42.5, p.position)
	assert.Equal(t, later, p.capturedAt)

	p.apply(model.ActionPlay, 42.5, later.Add(time.Second))
	assert.Equal(t, model.StatePlaying, p.state)
}

func TestPlaybackSetVideoResetsPosition(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := newPlaybackState(now)
	p.setVideo("abc123", now)
	p.apply(model.ActionPause, 99, now.Add(time.Minute))

	switched := now.Add(2 * time.Minute)
	p.setVideo("def456", switched)
	assert.Equal(t, "def456", p.videoID)
	assert.Equal(t, model.StatePlaying, p.state)
	assert.Equal(t, 0.0, p.position)
	assert.Equal(t, switched, p.capturedAt)
}

// A stored pair {position, capturedAt} only means something if readers can
// translate it: 30s into playback of a position captured at 100s is 130s.
func TestPlaybackTruePosition(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := newPlaybackState(now)
	p.setVideo("abc123", now)
	p.apply(model.ActionPlay, 100, now)

	assert.Equal(t, 130.0, p.truePosition(now.Add(30*time.Second)))

	p.apply(model.ActionPause, 100, now)
	assert.Equal(t, 100.0, p.truePosition(now.Add(30*time.Second)), "a paused position does not advance")
}
