package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostreamarr/internal/api/handlers"
	"github.com/amaumene/gostreamarr/internal/api/middleware"
	"github.com/amaumene/gostreamarr/internal/config"
	"github.com/amaumene/gostreamarr/internal/metrics"
	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/ranker"
)

const hash = "0123456789abcdef0123456789abcdef01234567"

type fakeRecords struct{}

func (fakeRecords) CountByMediaType(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{"movie": 2, "series": 3}, nil
}

type fakeLists struct{}

func (fakeLists) CachedLists() int { return 4 }

type fakeStreams struct {
	requests []models.MediaRequest
}

func (f *fakeStreams) Streams(ctx context.Context, req models.MediaRequest) ([]ranker.ScoredCandidate, error) {
	f.requests = append(f.requests, req)
	if req.IMDBID == "tt500" {
		return nil, errors.New("indexer down")
	}
	index := 4
	sc := ranker.ScoredCandidate{
		Candidate: models.TorrentCandidate{Name: "Show Name Season 1", InfoHash: hash, Seeders: 12, Size: 3 << 30},
		FileIndex: &index,
		FilePath:  "Show Name - Season 1/Show Name S01E05.mkv",
		Language:  "en",
	}
	sc.Descriptor.Resolution = models.Quality1080p
	return []ranker.ScoredCandidate{sc}, nil
}

type fakePlayer struct {
	token string
}

func (f *fakePlayer) Play(ctx context.Context, req models.MediaRequest, infoHash, token string) (string, error) {
	f.token = token
	if infoHash != hash {
		return "", errors.New("no stream available: unknown hash")
	}
	return "https://cdn.example/file.mkv", nil
}

func newTestServer() (*Server, *fakeStreams, *fakePlayer) {
	streams := &fakeStreams{}
	player := &fakePlayer{}
	s := NewServer(&config.Config{ServerPort: "0"}, Deps{
		Records: fakeRecords{},
		Lists:   fakeLists{},
		Streams: streams,
		Player:  player,
		Metrics: metrics.New(),
	}, zerolog.Nop())
	return s, streams, player
}

func do(t *testing.T, s *Server, target string) (*http.Response, string) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer()

	resp, body := do(t, s, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, body)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}

func TestStatus(t *testing.T) {
	s, _, _ := newTestServer()

	resp, body := do(t, s, "/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status handlers.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, int64(5), status.TotalRecords)
	assert.Equal(t, 4, status.CachedLists)
}

func TestMetrics(t *testing.T) {
	s, _, _ := newTestServer()

	resp, body := do(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")
}

func TestStreamList(t *testing.T) {
	s, streams, _ := newTestServer()

	resp, body := do(t, s, "/stream/series/tt0903747:1:5.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list handlers.StreamsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Streams, 1)
	assert.Equal(t, hash, list.Streams[0].InfoHash)
	require.NotNil(t, list.Streams[0].FileIdx)
	assert.Equal(t, 4, *list.Streams[0].FileIdx)
	assert.Equal(t, "gostreamarr\n1080p", list.Streams[0].Name)
	assert.Contains(t, list.Streams[0].Title, "12 seeders, 3.0 GiB, en")
	assert.Empty(t, list.Streams[0].URL)

	require.Len(t, streams.requests, 1)
	assert.Equal(t, models.MediaRequest{Type: models.MediaTypeSeries, IMDBID: "tt0903747", Season: 1, Episode: 5}, streams.requests[0])
}

func TestStreamListWithToken(t *testing.T) {
	s, _, _ := newTestServer()

	_, body := do(t, s, "/secret/stream/series/tt0903747:1:5")

	var list handlers.StreamsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Streams, 1)
	assert.Contains(t, list.Streams[0].URL, "/secret/play/series/tt0903747:1:5/"+hash)
}

func TestStreamListFailuresAreEmpty(t *testing.T) {
	s, _, _ := newTestServer()

	for _, target := range []string{"/stream/series/tt500:1:1", "/stream/series/tt1", "/stream/book/tt1"} {
		resp, body := do(t, s, target)
		assert.Equal(t, http.StatusOK, resp.StatusCode, target)
		assert.JSONEq(t, `{"streams":[]}`, body, target)
	}
}

func TestPlayRedirects(t *testing.T) {
	s, _, player := newTestServer()

	resp, _ := do(t, s, "/user-token/play/series/tt0903747:1:5/"+hash)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://cdn.example/file.mkv", resp.Header.Get("Location"))
	assert.Equal(t, "user-token", player.token)
}

func TestPlayNotFound(t *testing.T) {
	s, _, _ := newTestServer()

	resp, body := do(t, s, "/user-token/play/series/tt0903747:1:5/ffffffffffffffffffffffffffffffffffffffff")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no stream available", body)
	assert.NotContains(t, body, "unknown hash")
}
