package matcher

import (
	"path"
	"strings"

	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/parser"
	"github.com/amaumene/gostreamarr/internal/similarity"
)

// Verdict is the outcome of matching a whole torrent against an episode
type Verdict int

const (
	// Mismatch means the torrent names another season or another episode
	Mismatch Verdict = iota
	// Single means the torrent name carries exactly the requested episode
	Single
	// NeedsFiles means the name is a range, a pack or has no episode, so only
	// the file list can confirm the episode is inside
	NeedsFiles
)

func (v Verdict) String() string {
	switch v {
	case Single:
		return "single"
	case NeedsFiles:
		return "needs-files"
	default:
		return "mismatch"
	}
}

// Matches reports whether a descriptor covers the requested season and episode.
// A pack flag and a missing episode each count as covering the whole season.
func Matches(d parser.Descriptor, season, episode int) bool {
	if !seasonMatches(d, season) {
		return false
	}
	switch {
	case d.Episode != nil && *d.Episode == episode:
		return true
	case d.EpisodeRange != nil && d.EpisodeRange.Contains(episode):
		return true
	case d.IsSeasonPack:
		return true
	case d.Episode == nil && d.EpisodeRange == nil:
		return true
	}
	return false
}

func seasonMatches(d parser.Descriptor, season int) bool {
	if d.Season != nil {
		return *d.Season == season
	}
	return d.SeasonRange != nil && d.SeasonRange.Contains(season)
}

// MatchTorrent decides at torrent level whether a candidate is the requested
// episode, is definitely not, or needs its file list inspected.
func MatchTorrent(d parser.Descriptor, season, episode int) Verdict {
	if d.Season == nil && d.SeasonRange == nil {
		return NeedsFiles
	}
	if !Matches(d, season, episode) {
		return Mismatch
	}
	if d.HasSingleEpisode() {
		return Single
	}
	return NeedsFiles
}

// FileMatch is the file of a torrent chosen for an episode
type FileMatch struct {
	Index      int
	Path       string
	Size       int64
	Score      float64
	Descriptor parser.Descriptor
}

// SelectFile picks the video file carrying the requested episode. A file only
// matches with explicit episode evidence in its own name; the torrent season
// (or the season named by the file's directory) fills a missing season.
// Among matches the highest 1+similarity score wins, larger file on ties.
func SelectFile(files []models.TorrentFile, season, episode int, canonicalTitle string, fallbackSeason int) (FileMatch, bool) {
	var best FileMatch
	found := false

	for _, f := range files {
		if !parser.IsVideoFile(f.Path) {
			continue
		}

		fd := parser.ParseWithSeason(f.Path, dirSeason(f.Path, fallbackSeason))
		if !seasonMatches(fd, season) || !hasEpisode(fd, episode) {
			continue
		}

		score := 1 + similarity.Similarity(fd.Title, canonicalTitle)
		if !found || score > best.Score || (score == best.Score && f.Size > best.Size) {
			best = FileMatch{Index: f.Index, Path: f.Path, Size: f.Size, Score: score, Descriptor: fd}
			found = true
		}
	}

	return best, found
}

func hasEpisode(d parser.Descriptor, episode int) bool {
	if d.Episode != nil {
		return *d.Episode == episode
	}
	return d.EpisodeRange != nil && d.EpisodeRange.Contains(episode)
}

// dirSeason prefers a season named by the file's parent directory
// ("Show/Season 2/Episode 05.mkv") over the torrent level fallback.
func dirSeason(p string, fallback int) int {
	dir := path.Dir(strings.ReplaceAll(p, `\`, "/"))
	if dir == "." || dir == "/" {
		return fallback
	}
	if d := parser.Parse(path.Base(dir)); d.Season != nil {
		return *d.Season
	}
	return fallback
}

// MatchMovie rejects episode releases and years more than one apart. A missing
// year on either side is accepted.
func MatchMovie(d parser.Descriptor, year int) bool {
	if d.Episode != nil || d.EpisodeRange != nil {
		return false
	}
	if year > 0 && d.Year > 0 {
		diff := d.Year - year
		if diff < -1 || diff > 1 {
			return false
		}
	}
	return true
}

// FallbackSeason is the season a torrent implies for files that only carry an
// episode number.
func FallbackSeason(d parser.Descriptor, season int) int {
	if d.Season != nil {
		return *d.Season
	}
	if d.SeasonRange != nil && d.SeasonRange.Contains(season) {
		return season
	}
	return 0
}
