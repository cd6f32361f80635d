package parser

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostreamarr/internal/models"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"dots and underscores", "Show.Name_S01E02.1080p", "Show Name S01E02 1080p"},
		{"cjk bracket block", "[字幕组] Show Name - 05 [1080p]", "Show Name - 05 [1080p]"},
		{"cyrillic run", "Шоу Show Name S01E01", "Show Name S01E01"},
		{"noisy tag", "Show Name S01E01 [www.site.com] 720p", "Show Name S01E01 720p"},
		{"url", "www.torrents.com - Show Name S02E03", "Show Name S02E03"},
		{"email", "Show Name S01E01 uploader@mail.com", "Show Name S01E01"},
		{"stray dashes", "- Show Name - - S01E01 -", "Show Name - S01E01"},
		{"keeps clean tags", "Show Name - Season 1 (Complete) [1080p]", "Show Name - Season 1 (Complete) [1080p]"},
		{"nested noisy tag", "Show Name [HDR (x.y) 10] S01E01", "Show Name S01E01"},
		{"mismatched brackets", "Show (Name [x:y) S01E01", "Show S01E01"},
		{"tag left after cjk removal", "[b[:/:)/a1字b]", "[b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func FuzzSanitizeIdempotent(f *testing.F) {
	for _, seed := range []string{
		"Show.Name.S01E02.1080p.WEB-DL.x264-GROUP",
		"[字幕组][Show Name][01-12][BIG5]",
		"a-._-b",
		"www.site.org_Show_Name_(2019)_[HDR10+]",
		"Movie Name (2019) [1080p] [5.1] - YTS",
		"  --Show -- Name-- ",
		"Сериал.2020.WEB-DL",
		"",
		"[]",
		"[b[:/:)/a1字b]",
		"+w[[-:]+).",
		"[d (e) www.x[ab c]",
		"((([x.y])))",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		if !utf8.ValidString(raw) {
			t.Skip()
		}
		once := Sanitize(raw)
		assert.Equal(t, once, Sanitize(once), "sanitize(%q) is not idempotent", raw)
	})
}

func TestParseSingleEpisode(t *testing.T) {
	d := Parse("Show.Name.S01E02.1080p.WEB-DL.x264-GROUP")

	require.NotNil(t, d.Season)
	require.NotNil(t, d.Episode)
	assert.Equal(t, 1, *d.Season)
	assert.Equal(t, 2, *d.Episode)
	assert.Equal(t, models.Quality1080p, d.Resolution)
	assert.Equal(t, "Show Name", d.Title)
	assert.Equal(t, "x264", d.Codec)
	assert.Equal(t, "GROUP", d.Group)
	assert.True(t, d.HasSingleEpisode())
	assert.False(t, d.IsSeasonPack)
}

func TestParseSeasonPack(t *testing.T) {
	d := Parse("Show Name - Season 1 (Complete) [1080p]")

	require.NotNil(t, d.Season)
	assert.Equal(t, 1, *d.Season)
	assert.True(t, d.IsSeasonPack)
	assert.False(t, d.HasSingleEpisode())
	assert.Equal(t, "Show Name", d.Title)
	assert.Equal(t, models.Quality1080p, d.Resolution)
}

func TestParseRanges(t *testing.T) {
	d := Parse("Show.Name.S02E01-E05.720p")
	require.NotNil(t, d.EpisodeRange)
	assert.Equal(t, Range{Start: 1, End: 5}, *d.EpisodeRange)
	assert.Nil(t, d.Episode)
	require.NotNil(t, d.Season)
	assert.Equal(t, 2, *d.Season)
	assert.False(t, d.IsSeasonPack)
	assert.False(t, d.HasSingleEpisode())

	d = Parse("Show Name S01E01E02E03 1080p")
	require.NotNil(t, d.EpisodeRange)
	assert.Equal(t, Range{Start: 1, End: 3}, *d.EpisodeRange)

	d = Parse("Show Name S01-S03 1080p BluRay")
	require.NotNil(t, d.SeasonRange)
	assert.Equal(t, Range{Start: 1, End: 3}, *d.SeasonRange)
	assert.Nil(t, d.Season)
	assert.True(t, d.IsSeasonPack)
}

func TestFallbackChain(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		season  int
		episode int
	}{
		{"explicit wording", "Show Name Season 2 Episode 7 720p", 2, 7},
		{"sxxexx with ep", "Show Name S03 EP04", 3, 4},
		{"nxm", "Show Name 4x09 HDTV", 4, 9},
		{"three digit", "Show Name 215 HDTV", 2, 15},
		{"dotted", "Show.Name.3.07.avi", 3, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Parse(tt.raw)
			require.NotNil(t, d.Season, "season for %q", tt.raw)
			require.NotNil(t, d.Episode, "episode for %q", tt.raw)
			assert.Equal(t, tt.season, *d.Season)
			assert.Equal(t, tt.episode, *d.Episode)
		})
	}
}

func TestThreeDigitIgnoresCodecAndResolution(t *testing.T) {
	d := Parse("Movie Name 2019 1080p BluRay H 264")
	assert.Nil(t, d.Episode)
	assert.Equal(t, 2019, d.Year)
}

func TestParseWithFallbackSeason(t *testing.T) {
	d := ParseWithSeason("Show Name/Episode 05.mkv", 3)
	require.NotNil(t, d.Season)
	require.NotNil(t, d.Episode)
	assert.Equal(t, 3, *d.Season)
	assert.Equal(t, 5, *d.Episode)

	d = Parse("Episode 05.mkv")
	assert.Nil(t, d.Season)
	require.NotNil(t, d.Episode)
}

func TestParseIsTotal(t *testing.T) {
	inputs := []string{"", "   ", "[]", "()", "....", "字幕", "S", "99999999999999999999", "\x00\xff"}
	for _, raw := range inputs {
		assert.NotPanics(t, func() { Parse(raw) }, "parse(%q)", raw)
	}

	d := Parse("")
	assert.Nil(t, d.Season)
	assert.Nil(t, d.Episode)
	assert.Equal(t, models.QualityUnknown, d.Resolution)
}

func TestParseFlags(t *testing.T) {
	d := Parse("Movie Name 2021 2160p WEB-DL DV HDR10 x265 MULTI-GROUP")
	assert.Equal(t, models.Quality2160p, d.Resolution)
	assert.True(t, d.HDR)
	assert.True(t, d.DolbyVision)
	assert.Equal(t, "x265", d.Codec)
	assert.Equal(t, LanguageMulti, d.Language)
	assert.Equal(t, 2021, d.Year)
	assert.Equal(t, "Movie Name", d.Title)
}

func TestCanonicalLanguage(t *testing.T) {
	tests := map[string]string{
		"tam":     "ta",
		"Tamil":   "ta",
		"eng":     "en",
		"en":      "en",
		"English": "en",
		"fr":      "fr",
		"":        "",
		"klingon": "klingon",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalLanguage(in), "CanonicalLanguage(%q)", in)
	}
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("Show/Show S01E05.mkv"))
	assert.True(t, IsVideoFile("movie.MP4"))
	assert.False(t, IsVideoFile("Show/sample.mkv"))
	assert.False(t, IsVideoFile("Show/info.nfo"))
}
