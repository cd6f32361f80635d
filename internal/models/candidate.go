package models

import (
	"fmt"
	"strconv"
	"strings"
)

// TorrentFile is one file inside a torrent as reported by the indexer or file lister
type TorrentFile struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Index int    `json:"index"`
}

// TorrentCandidate is a search result, not yet validated against the requested media
type TorrentCandidate struct {
	Name      string
	InfoHash  string // lowercase hex
	Magnet    string // optional, indexer supplied
	Size      int64
	Seeders   int
	Leechers  int
	Languages []string
	Files     []TorrentFile
}

// HasFiles reports whether the indexer embedded a file list
func (c TorrentCandidate) HasFiles() bool {
	return len(c.Files) > 0
}

// MediaRequest identifies what the caller asked for: "tt0903747" for a movie,
// "tt0903747:1:5" for an episode
type MediaRequest struct {
	Type    MediaType
	IMDBID  string
	Season  int
	Episode int
}

// ParseMediaRequest splits an addon style id into its parts
func ParseMediaRequest(mediaType MediaType, id string) (MediaRequest, error) {
	req := MediaRequest{Type: mediaType}
	parts := strings.Split(strings.TrimSuffix(id, ".json"), ":")
	req.IMDBID = parts[0]
	if !strings.HasPrefix(req.IMDBID, "tt") {
		return req, fmt.Errorf("invalid imdb id %q", req.IMDBID)
	}

	if mediaType == MediaTypeMovie {
		return req, nil
	}

	if len(parts) != 3 {
		return req, fmt.Errorf("series id %q must be imdb:season:episode", id)
	}
	season, err := strconv.Atoi(parts[1])
	if err != nil || season < 0 {
		return req, fmt.Errorf("invalid season in %q", id)
	}
	episode, err := strconv.Atoi(parts[2])
	if err != nil || episode <= 0 {
		return req, fmt.Errorf("invalid episode in %q", id)
	}
	req.Season = season
	req.Episode = episode
	return req, nil
}

// ID renders the request back to the addon id form
func (r MediaRequest) ID() string {
	if r.Type == MediaTypeMovie {
		return r.IMDBID
	}
	return fmt.Sprintf("%s:%d:%d", r.IMDBID, r.Season, r.Episode)
}

// IsEpisode reports whether the request targets a series episode
func (r MediaRequest) IsEpisode() bool {
	return r.Type == MediaTypeSeries
}
