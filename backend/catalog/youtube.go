package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/virtualdj/server/backend/model"
)

const (
	defaultBaseURL        = "https://www.googleapis.com/youtube/v3"
	defaultRequestTimeout = 5 * time.Second
	defaultLimit          = 10
)

var ErrUpstream = errors.New("catalog search failed")

type Config struct {
	Logger  *zerolog.Logger
	APIKey  string
	BaseURL string
}

// YouTube queries the Data API v3 search endpoint. Identical concurrent
// queries are collapsed into one upstream call.
type YouTube struct {
	logger  zerolog.Logger
	client  *http.Client
	apiKey  string
	baseURL string
	sf      singleflight.Group
}

func NewYouTube(cfg Config) *YouTube {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &YouTube{
		logger:  cfg.Logger.With().Str("component", "catalog").Logger(),
		client:  &http.Client{Timeout: defaultRequestTimeout},
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title      string `json:"title"`
			Thumbnails struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (yt *YouTube) Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	key := strconv.Itoa(limit) + ":" + query
	res, err, shared := yt.sf.Do(key, func() (interface{}, error) {
		return yt.search(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		yt.logger.Debug().Str("query", query).Msg("search result shared")
	}
	return res.([]model.SearchResult), nil
}

func (yt *YouTube) search(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("q", query)
	params.Set("key", yt.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, yt.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Join(ErrUpstream, err)
	}

	resp, err := yt.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrUpstream, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var sr searchResponse
	if err = json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errors.Join(ErrUpstream, err)
	}

	results := make([]model.SearchResult, 0, len(sr.Items))
	for _, item := range sr.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, model.SearchResult{
			ID:        item.ID.VideoID,
			Title:     item.Snippet.Title,
			Thumbnail: item.Snippet.Thumbnails.Medium.URL,
		})
	}
	return results, nil
}
