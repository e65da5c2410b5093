package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/BTreeMap/Lumi/internal/models"
)

// DefaultYouTubeURL is the YouTube Data API search endpoint.
const DefaultYouTubeURL = "https://www.googleapis.com/youtube/v3/search"

const youTubeWatchURL = "https://www.youtube.com/watch?v="

// YouTubeClient searches YouTube for videos.
type YouTubeClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewYouTubeClient creates a client. An API key is required.
func NewYouTubeClient(opts ...Option) (*YouTubeClient, error) {
	cfg, err := buildOpts(DefaultYouTubeURL, opts)
	if err != nil {
		return nil, err
	}
	return &YouTubeClient{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, http: cfg.HTTPClient}, nil
}

type youTubeResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
	} `json:"items"`
}

// SearchVideos returns up to count videos matching query.
func (c *YouTubeClient) SearchVideos(ctx context.Context, query string, count int) ([]models.MediaResult, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("q", query)
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(count))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build youtube request: %w", err)
	}

	var body youTubeResponse
	if err := getJSON(c.http, req, &body); err != nil {
		slog.Error("YouTubeClient.SearchVideos: search failed", "query", query, "error", err)
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	results := make([]models.MediaResult, 0, len(body.Items))
	for _, item := range body.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, models.MediaResult{
			URL:         youTubeWatchURL + item.ID.VideoID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
		})
	}
	slog.Debug("YouTubeClient.SearchVideos: search complete", "query", query, "results", len(results))
	return results, nil
}
