package trakt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.Config{
		TraktClientID: "client-id",
		SearchPolicy:  retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	}, zerolog.Nop())
	require.NoError(t, err)
	client.baseURL = server.URL
	return client
}

func TestLookupShow(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/search/imdb/tt0903747", r.URL.Path)
		assert.Equal(t, "show", r.URL.Query().Get("type"))
		assert.Equal(t, "client-id", r.Header.Get("trakt-api-key"))
		assert.Equal(t, "2", r.Header.Get("trakt-api-version"))
		_, _ = w.Write([]byte(`[{"type":"show","score":1000,"show":{"title":"Breaking Bad","year":2008,"ids":{"trakt":1388,"imdb":"tt0903747"}}}]`))
	})

	meta, err := client.Lookup(context.Background(), models.MediaTypeSeries, "tt0903747")
	require.NoError(t, err)
	assert.Equal(t, Metadata{Title: "Breaking Bad", Year: 2008, IMDB: "tt0903747"}, *meta)

	_, err = client.Lookup(context.Background(), models.MediaTypeSeries, "tt0903747")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second lookup is served from cache")
}

func TestLookupNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.Lookup(context.Background(), models.MediaTypeMovie, "tt0000000")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestLookupRetriesServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"type":"movie","movie":{"title":"The Matrix","year":1999,"ids":{"imdb":"tt0133093"}}}]`))
	})

	meta, err := client.Lookup(context.Background(), models.MediaTypeMovie, "tt0133093")
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", meta.Title)
	assert.Equal(t, 3, calls)
}

func TestNewClientRequiresID(t *testing.T) {
	_, err := NewClient(&config.Config{}, zerolog.Nop())
	assert.EqualError(t, err, "trakt client id is required")
}
