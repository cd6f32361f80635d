package parser

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	ptn "github.com/razsteinmetz/go-ptn"

	"github.com/amaumene/gostreamarr/internal/models"
)

// Range is an inclusive span of season or episode numbers
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether n falls inside the range
func (r Range) Contains(n int) bool {
	return n >= r.Start && n <= r.End
}

// Descriptor holds the structured fields extracted from a torrent or file name.
// Nil pointers mean the field could not be recovered.
type Descriptor struct {
	Raw          string         `json:"raw"`
	Clean        string         `json:"clean"`
	Title        string         `json:"title"`
	Year         int            `json:"year,omitempty"`
	Season       *int           `json:"season,omitempty"`
	SeasonRange  *Range         `json:"season_range,omitempty"`
	Episode      *int           `json:"episode,omitempty"`
	EpisodeRange *Range         `json:"episode_range,omitempty"`
	Resolution   models.Quality `json:"resolution"`
	Codec        string         `json:"codec,omitempty"`
	Source       string         `json:"source,omitempty"`
	Language     string         `json:"language,omitempty"`
	Group        string         `json:"group,omitempty"`
	IsSeasonPack bool           `json:"is_season_pack"`
	HDR          bool           `json:"hdr"`
	DolbyVision  bool           `json:"dolby_vision"`
	Proper       bool           `json:"proper"`
	Repack       bool           `json:"repack"`
	MatchedBy    string         `json:"matched_by,omitempty"` // fallback rule that completed season/episode
}

// HasSingleEpisode reports whether the descriptor names exactly one episode
func (d Descriptor) HasSingleEpisode() bool {
	return d.Episode != nil && d.EpisodeRange == nil && !d.IsSeasonPack
}

var (
	// earliest marker that ends the title part of a release name
	titleEndRegex = regexp.MustCompile(`(?i)\bS\d{1,2}(?:\s*E\d{1,3})?\b|\bseasons?\s*\d{1,2}\b|\b\d{1,2}x\d{1,3}\b|\b(?:19|20)\d{2}\b|\b(?:2160|1080|720|576|480)[pi]\b|\b4k\b|\bcomplete\b|\bweb[\s-]?dl\b|\bwebrip\b|\bblu-?ray\b|\bhdtv\b|\bx26[45]\b|\bhevc\b|[\[(]`)
	yearRegex     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	resolutionRegex = regexp.MustCompile(`(?i)\b(2160p|4k|uhd|1080[pi]|720p|576p|480p)\b`)
	codecRegex      = regexp.MustCompile(`(?i)\b(x264|x265|h\s?264|h\s?265|hevc|avc|av1|xvid|divx)\b`)
	sourceRegex     = regexp.MustCompile(`(?i)\b(web[\s-]?dl|webrip|blu-?ray|bdrip|brrip|remux|hdtv|dvdrip|hdrip|hdcam|cam)\b`)
	groupRegex      = regexp.MustCompile(`-\s?([A-Za-z0-9]+)$`)
	hdrRegex        = regexp.MustCompile(`(?i)\b(hdr10\+?|hdr|hlg)`)
	dolbyRegex      = regexp.MustCompile(`(?i)\b(dolby\s?vision|dovi|dv)\b`)
	properRegex     = regexp.MustCompile(`(?i)\bproper\b`)
	repackRegex     = regexp.MustCompile(`(?i)\brepack\b`)

	packRegex          = regexp.MustCompile(`(?i)\b(complete|full\s+season|season\s+pack|all\s+episodes|integrale?)\b`)
	episodeSpanRegex   = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*E(\d{1,3})\s*(?:-|~|to)\s*E?(\d{1,3})\b`)
	multiEpisodeRegex  = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*E(\d{1,3})((?:\s*E\d{1,3})+)\b`)
	episodesWordRegex  = regexp.MustCompile(`(?i)\bepisodes?\s*(\d{1,3})\s*(?:-|~|to)\s*(\d{1,3})\b`)
	seasonSpanRegex    = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*-\s*S?(\d{1,2})\b`)
	seasonsWordRegex   = regexp.MustCompile(`(?i)\bseasons?\s*(\d{1,2})\s*(?:-|~|to)\s*(\d{1,2})\b`)
	trailingEpisodeNum = regexp.MustCompile(`(?i)E(\d{1,3})`)

	videoExtensions = map[string]struct{}{
		".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {}, ".mov": {}, ".wmv": {},
		".ts": {}, ".m2ts": {}, ".webm": {}, ".mpg": {}, ".mpeg": {},
	}
)

// Parse extracts a descriptor from a raw torrent name. It never fails.
func Parse(raw string) Descriptor {
	return ParseWithSeason(raw, 0)
}

// ParseWithSeason is Parse with a season to assume when only an episode can
// be recovered, e.g. a file inside a torrent that already names its season.
func ParseWithSeason(raw string, fallbackSeason int) Descriptor {
	name := raw
	if ext := path.Ext(name); isVideoExt(ext) {
		name = strings.TrimSuffix(name, ext)
	}
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	clean := Sanitize(name)
	d := Descriptor{Raw: raw, Clean: clean}

	title, rest := splitTitle(clean)
	d.Title = title

	structural(clean, &d)
	detectRanges(clean, &d)

	if d.Title == "" {
		d.Title = clean
	}
	if m := yearRegex.FindStringSubmatch(rest); m != nil && d.Year == 0 {
		d.Year, _ = strconv.Atoi(m[1])
	}

	if d.Season == nil || (d.Episode == nil && d.EpisodeRange == nil) {
		d.MatchedBy = runFallbackChain(chainInput{raw: name, clean: clean}, &d)
	}

	if d.Season == nil && d.SeasonRange == nil && d.Episode != nil && fallbackSeason > 0 {
		d.Season = intPtr(fallbackSeason)
	}

	if packRegex.MatchString(clean) || d.SeasonRange != nil {
		d.IsSeasonPack = true
	}

	d.Language = detectLanguage(rest)
	return d
}

// splitTitle cuts the sanitized name at the first release marker
func splitTitle(clean string) (string, string) {
	locs := titleEndRegex.FindAllStringIndex(clean, -1)
	for _, loc := range locs {
		if loc[0] == 0 {
			// a year or number leading the name belongs to the title ("1917", "2012")
			continue
		}
		title := strings.Trim(clean[:loc[0]], " -")
		return title, clean[loc[0]:]
	}
	return "", clean
}

// structural fills descriptor fields with go-ptn, overridden by the stricter
// local patterns where both produce a value
func structural(clean string, d *Descriptor) {
	if info := ptnParse(clean); info != nil {
		if d.Title == "" {
			d.Title = strings.Trim(strings.TrimSpace(info.Title), " -")
		}
		if info.Year > 1900 {
			d.Year = int(info.Year)
		}
		if info.Season > 0 && info.Season < 100 {
			d.Season = intPtr(int(info.Season))
		}
		if info.Episode > 0 && info.Episode < 1000 {
			d.Episode = intPtr(int(info.Episode))
		}
		d.Codec = strings.ToLower(info.Codec)
		d.Source = strings.ToLower(info.Quality)
		d.Group = info.Group
		d.Resolution = normalizeResolution(info.Resolution)
	}

	if m := resolutionRegex.FindString(clean); m != "" {
		d.Resolution = normalizeResolution(m)
	}
	if d.Resolution == "" {
		d.Resolution = models.QualityUnknown
	}
	if m := codecRegex.FindString(clean); m != "" {
		d.Codec = normalizeCodec(m)
	}
	if m := sourceRegex.FindString(clean); m != "" {
		d.Source = strings.ToLower(strings.ReplaceAll(m, " ", "-"))
	}
	if m := groupRegex.FindStringSubmatch(clean); m != nil {
		d.Group = m[1]
	}

	d.HDR = hdrRegex.MatchString(clean)
	d.DolbyVision = dolbyRegex.MatchString(clean)
	d.Proper = properRegex.MatchString(clean)
	d.Repack = repackRegex.MatchString(clean)
}

// ptnParse shields Parse from panics inside the third-party parser
func ptnParse(clean string) (info *ptn.TorrentInfo) {
	defer func() {
		if recover() != nil {
			info = nil
		}
	}()
	parsed, err := ptn.Parse(clean)
	if err != nil {
		return nil
	}
	return parsed
}

// detectRanges recognises multi-episode and multi-season spans. A span wins
// over a single episode picked up by the structural parser.
func detectRanges(clean string, d *Descriptor) {
	if m := episodeSpanRegex.FindStringSubmatch(clean); m != nil {
		season, _ := strconv.Atoi(m[1])
		start, _ := strconv.Atoi(m[2])
		end, _ := strconv.Atoi(m[3])
		if end > start {
			d.Season = intPtr(season)
			d.Episode = nil
			d.EpisodeRange = &Range{Start: start, End: end}
		}
	} else if m := multiEpisodeRegex.FindStringSubmatch(clean); m != nil {
		season, _ := strconv.Atoi(m[1])
		start, _ := strconv.Atoi(m[2])
		end := start
		for _, e := range trailingEpisodeNum.FindAllStringSubmatch(m[3], -1) {
			if n, _ := strconv.Atoi(e[1]); n > end {
				end = n
			}
		}
		if end > start {
			d.Season = intPtr(season)
			d.Episode = nil
			d.EpisodeRange = &Range{Start: start, End: end}
		}
	} else if m := episodesWordRegex.FindStringSubmatch(clean); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if end > start {
			d.Episode = nil
			d.EpisodeRange = &Range{Start: start, End: end}
		}
	}

	m := seasonSpanRegex.FindStringSubmatch(clean)
	if m == nil {
		m = seasonsWordRegex.FindStringSubmatch(clean)
	}
	if m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if end > start {
			d.Season = nil
			d.Episode = nil
			d.EpisodeRange = nil
			d.SeasonRange = &Range{Start: start, End: end}
		}
	}
}

func normalizeResolution(s string) models.Quality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2160p", "4k", "uhd":
		return models.Quality2160p
	case "1080p", "1080i":
		return models.Quality1080p
	case "720p":
		return models.Quality720p
	case "576p", "480p":
		return models.Quality480p
	case "":
		return ""
	default:
		return models.QualityUnknown
	}
}

func normalizeCodec(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, " ", ""))
	switch s {
	case "h264", "avc":
		return "x264"
	case "h265", "hevc":
		return "x265"
	default:
		return s
	}
}

// IsVideoFile reports whether a file path looks like a playable video and not a sample
func IsVideoFile(p string) bool {
	if !isVideoExt(path.Ext(p)) {
		return false
	}
	return !strings.Contains(strings.ToLower(path.Base(strings.ReplaceAll(p, `\`, "/"))), "sample")
}

func isVideoExt(ext string) bool {
	_, ok := videoExtensions[strings.ToLower(ext)]
	return ok
}

func intPtr(v int) *int {
	return &v
}
