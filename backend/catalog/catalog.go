package catalog

import (
	"context"

	"github.com/virtualdj/server/backend/model"
)

// Searcher is the external video-catalog collaborator. Results are ranked
// by the upstream API; the engine only consumes id and title when a result
// becomes a suggestion.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error)
}
