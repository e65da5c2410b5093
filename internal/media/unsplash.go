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

// DefaultUnsplashURL is the Unsplash photo search endpoint.
const DefaultUnsplashURL = "https://api.unsplash.com/search/photos"

const defaultImageDescription = "Imagen relajante"

// UnsplashClient searches Unsplash for photos.
type UnsplashClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewUnsplashClient creates a client. An API key is required.
func NewUnsplashClient(opts ...Option) (*UnsplashClient, error) {
	cfg, err := buildOpts(DefaultUnsplashURL, opts)
	if err != nil {
		return nil, err
	}
	return &UnsplashClient{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, http: cfg.HTTPClient}, nil
}

type unsplashResponse struct {
	Results []struct {
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// SearchImages returns up to count photos matching query.
func (c *UnsplashClient) SearchImages(ctx context.Context, query string, count int) ([]models.MediaResult, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(count))
	q.Set("client_id", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build unsplash request: %w", err)
	}
	req.Header.Set("Accept-Version", "v1")

	var body unsplashResponse
	if err := getJSON(c.http, req, &body); err != nil {
		slog.Error("UnsplashClient.SearchImages: search failed", "query", query, "error", err)
		return nil, fmt.Errorf("unsplash search: %w", err)
	}

	results := make([]models.MediaResult, 0, len(body.Results))
	for _, r := range body.Results {
		if r.URLs.Regular == "" {
			continue
		}
		desc := r.Description
		if desc == "" {
			desc = defaultImageDescription
		}
		results = append(results, models.MediaResult{URL: r.URLs.Regular, Title: r.AltDescription, Description: desc})
	}
	slog.Debug("UnsplashClient.SearchImages: search complete", "query", query, "results", len(results))
	return results, nil
}
