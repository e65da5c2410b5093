package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientsRequireKey(t *testing.T) {
	_, err := NewUnsplashClient()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewYouTubeClient()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestUnsplashSearchImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "naturaleza relajante", r.URL.Query().Get("query"))
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		assert.Equal(t, "unsplash-key", r.URL.Query().Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"description":null,"alt_description":"lago","urls":{"regular":"https://images.unsplash.com/lake"}},
			{"description":"sin url","urls":{"regular":""}}
		]}`))
	}))
	defer srv.Close()

	c, err := NewUnsplashClient(WithAPIKey("unsplash-key"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	results, err := c.SearchImages(context.Background(), "naturaleza relajante", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://images.unsplash.com/lake", results[0].URL)
	assert.Equal(t, "Imagen relajante", results[0].Description)
	assert.Equal(t, "lago", results[0].Title)
}

func TestUnsplashSearchImagesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewUnsplashClient(WithAPIKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.SearchImages(context.Background(), "x", 1)
	assert.ErrorContains(t, err, "403")
}

func TestYouTubeSearchVideos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "snippet", q.Get("part"))
		assert.Equal(t, "video", q.Get("type"))
		assert.Equal(t, "meditación guiada", q.Get("q"))
		assert.Equal(t, "yt-key", q.Get("key"))
		assert.Equal(t, "3", q.Get("maxResults"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":{"videoId":"abc123"},"snippet":{"title":"Meditación de 10 minutos"}},
			{"id":{"channelId":"chan"},"snippet":{"title":"canal"}}
		]}`))
	}))
	defer srv.Close()

	c, err := NewYouTubeClient(WithAPIKey("yt-key"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	results, err := c.SearchVideos(context.Background(), "meditación guiada", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", results[0].URL)
	assert.Equal(t, "Meditación de 10 minutos", results[0].Title)
}

func TestYouTubeSearchVideosEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c, err := NewYouTubeClient(WithAPIKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	results, err := c.SearchVideos(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestYouTubeSearchVideosBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := NewYouTubeClient(WithAPIKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.SearchVideos(context.Background(), "x", 1)
	assert.ErrorContains(t, err, "decode response")
}

func TestSearchHonorsCancelledContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"results":[],"items":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	images, err := NewUnsplashClient(WithAPIKey("k"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = images.SearchImages(ctx, "naturaleza relajante", 1)
	assert.ErrorIs(t, err, context.Canceled)

	videos, err := NewYouTubeClient(WithAPIKey("k"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = videos.SearchVideos(ctx, "meditación guiada", 1)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, hits.Load(), "no request leaves a cancelled context")
}
