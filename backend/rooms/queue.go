package rooms

import (
	"time"

	"github.com/virtualdj/server/backend/model"
)

// track is a suggested video with its vote set. Votes are keyed by member
// identity, so re-voting can never double count.
type track struct {
	id          string
	title       string
	suggestedBy string
	voters      map[string]struct{}
	createdAt   time.Time
}

type queueStore struct {
	items []*track
}

func newQueueStore() *queueStore {
	return &queueStore{}
}

func (q *queueStore) add(id, title, suggestedBy string, now time.Time) {
	q.items = append(q.items, &track{
		id:          id,
		title:       title,
		suggestedBy: suggestedBy,
		voters:      make(map[string]struct{}),
		createdAt:   now,
	})
}

// vote records a member's vote and reports whether anything changed.
// Voting on a missing track or voting twice is a no-op.
func (q *queueStore) vote(memberID, trackID string) bool {
	for _, t := range q.items {
		if t.id != trackID {
			continue
		}
		if _, voted := t.voters[memberID]; voted {
			return false
		}
		t.voters[memberID] = struct{}{}
		return true
	}
	return false
}

func (q *queueStore) remove(trackID string) bool {
	for i, t := range q.items {
		if t.id == trackID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// topVoted returns the item with the most votes; ties go to the earliest
// suggestion. Insertion order makes the scan stable.
func (q *queueStore) topVoted() *track {
	var best *track
	for _, t := range q.items {
		if best == nil ||
			len(t.voters) > len(best.voters) ||
			(len(t.voters) == len(best.voters) && t.createdAt.Before(best.createdAt)) {
			best = t
		}
	}
	return best
}

func (q *queueStore) view() []model.QueueItem {
	items := make([]model.QueueItem, 0, len(q.items))
	for _, t := range q.items {
		items = append(items, model.QueueItem{
			ID:          t.id,
			Title:       t.title,
			SuggestedBy: t.suggestedBy,
			Votes:       len(t.voters),
			CreatedAt:   t.createdAt,
		})
	}
	return items
}

func (q *queueStore) len() int {
	return len(q.items)
}
