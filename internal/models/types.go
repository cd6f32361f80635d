package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by the store when no record matches a key
var ErrNotFound = errors.New("record not found")

// MediaType represents the type of media (movie or series)
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// ParseMediaType accepts the addon spelling ("movie", "series") and the "tv" alias
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return MediaTypeMovie, nil
	case "series", "tv", "show":
		return MediaTypeSeries, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// Quality represents the resolution tier of a release
type Quality string

const (
	Quality2160p   Quality = "2160p"
	Quality1080p   Quality = "1080p"
	Quality720p    Quality = "720p"
	Quality480p    Quality = "480p"
	QualityUnknown Quality = "unknown"
)
