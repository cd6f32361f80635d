package parser

import (
	"regexp"
	"strconv"
)

type chainInput struct {
	raw   string // basename before sanitizing, dots intact
	clean string
}

// episodeMatcher recovers season and/or episode numbers from a title. It only
// fills fields that are still nil.
type episodeMatcher struct {
	name  string
	match func(in chainInput, d *Descriptor)
}

var (
	explicitWordingRegex = regexp.MustCompile(`(?i)\bseason\s*(\d{1,2})\W*episode\s*(\d{1,3})\b`)
	seasonEpisodeRegex   = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*(?:E|EP)\s*(\d{1,3})\b`)
	crossRegex           = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	threeDigitRegex      = regexp.MustCompile(`\b([1-9])(\d{2})\b`)
	dottedRegex          = regexp.MustCompile(`\b(\d{1,2})\.(\d{2})\b`)
	episodeWordRegex     = regexp.MustCompile(`(?i)\b(?:ep|episode)\s*(\d{1,3})\b`)
	seasonWordRegex      = regexp.MustCompile(`(?i)\bseason\s*(\d{1,2})\b|\bS(\d{1,2})\b`)

	// tokens that look like episode numbers but are not
	numericNoiseRegex = regexp.MustCompile(`(?i)\b[hx]\s?26[45]\b|\b(?:2160|1080|720|576|480)[pi]?\b|\b(?:19|20)\d{2}\b|\b\d{1,2}\s?bit\b|\b[257]\s?[01]\b`)
)

// fallbackChain is evaluated in order, most specific first, and stops as soon
// as both season and episode are known.
var fallbackChain = []episodeMatcher{
	{name: "explicit-wording", match: pairMatcher(explicitWordingRegex, false)},
	{name: "sxxexx", match: pairMatcher(seasonEpisodeRegex, false)},
	{name: "nxm", match: pairMatcher(crossRegex, false)},
	{name: "three-digit", match: pairMatcher(threeDigitRegex, true)},
	{name: "dotted", match: dottedMatcher},
	{name: "episode-word", match: episodeWordMatcher},
	{name: "season-word", match: seasonWordMatcher},
}

func runFallbackChain(in chainInput, d *Descriptor) string {
	for _, m := range fallbackChain {
		m.match(in, d)
		if complete(d) {
			return m.name
		}
	}
	return ""
}

func complete(d *Descriptor) bool {
	return d.Season != nil && (d.Episode != nil || d.EpisodeRange != nil)
}

func pairMatcher(re *regexp.Regexp, stripNoise bool) func(chainInput, *Descriptor) {
	return func(in chainInput, d *Descriptor) {
		text := in.clean
		if stripNoise {
			text = numericNoiseRegex.ReplaceAllString(text, " ")
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			return
		}
		fill(d, m[1], m[2])
	}
}

func dottedMatcher(in chainInput, d *Descriptor) {
	text := numericNoiseRegex.ReplaceAllString(in.raw, " ")
	if m := dottedRegex.FindStringSubmatch(text); m != nil {
		fill(d, m[1], m[2])
	}
}

func episodeWordMatcher(in chainInput, d *Descriptor) {
	if d.Episode != nil || d.EpisodeRange != nil {
		return
	}
	if m := episodeWordRegex.FindStringSubmatch(in.clean); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			d.Episode = intPtr(n)
		}
	}
}

func seasonWordMatcher(in chainInput, d *Descriptor) {
	if d.Season != nil || d.SeasonRange != nil {
		return
	}
	if m := seasonWordRegex.FindStringSubmatch(in.clean); m != nil {
		value := m[1]
		if value == "" {
			value = m[2]
		}
		if n, err := strconv.Atoi(value); err == nil {
			d.Season = intPtr(n)
		}
	}
}

// fill sets whichever of season/episode is still missing. A matcher that
// disagrees with an already known season is ignored.
func fill(d *Descriptor, seasonText, episodeText string) {
	season, err := strconv.Atoi(seasonText)
	if err != nil {
		return
	}
	episode, err := strconv.Atoi(episodeText)
	if err != nil || episode == 0 {
		return
	}
	if d.Season != nil && *d.Season != season {
		return
	}
	if d.SeasonRange != nil {
		return
	}
	if d.Season == nil {
		d.Season = intPtr(season)
	}
	if d.Episode == nil && d.EpisodeRange == nil {
		d.Episode = intPtr(episode)
	}
}
