// Package media searches external catalogues for calming images and videos.
package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds each search request.
const DefaultTimeout = 10 * time.Second

// ErrMissingAPIKey is returned when a client is built without credentials.
var ErrMissingAPIKey = errors.New("media: API key not set")

// Opts holds configuration shared by the media clients.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures Opts.
type Option func(*Opts)

// WithAPIKey sets the provider credential.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithBaseURL overrides the provider search endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

func buildOpts(defaultURL string, opts []Option) (Opts, error) {
	cfg := Opts{BaseURL: defaultURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return cfg, ErrMissingAPIKey
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return cfg, nil
}

// getJSON sends req and decodes a JSON body into out. req carries the caller's context.
func getJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
