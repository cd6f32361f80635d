package ranker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/amaumene/gostreamarr/internal/matcher"
	"github.com/amaumene/gostreamarr/internal/metrics"
	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/parser"
	"github.com/amaumene/gostreamarr/internal/retry"
	"github.com/amaumene/gostreamarr/internal/similarity"
	"github.com/amaumene/gostreamarr/internal/utils"
)

// Rejection reasons
const (
	ReasonBlacklisted   = "blacklisted"
	ReasonLowSimilarity = "low-similarity"
	ReasonWrongEpisode  = "episode-mismatch"
	ReasonWrongMovie    = "movie-mismatch"
	ReasonNoFiles       = "no-files"
	ReasonNoFileMatch   = "no-file-match"
)

const (
	// DefaultMinSimilarity is the title similarity below which a candidate is dropped
	DefaultMinSimilarity = 0.5

	matchBonus       = 1000
	similarityWeight = 100
	seederWeight     = 0.001
	maxSeederBonus   = 1

	// language scores: every preference step outweighs the largest possible
	// quality plus seeder difference. The last preference of a list scores
	// minPreferenceScore, the first of a short list firstPreferenceScore.
	firstPreferenceScore = 200
	preferenceStep       = 25
	minPreferenceScore   = 25
	unknownLanguageScore = 5

	fileListWorkers = 4
)

// Target is what the candidates are ranked against
type Target struct {
	Type    models.MediaType
	Title   string // canonical title from the metadata provider
	Year    int
	Season  int
	Episode int
}

// FileLister returns the files of a torrent when the indexer did not embed them
type FileLister interface {
	Files(ctx context.Context, infoHash string) ([]models.TorrentFile, error)
}

// Blacklist excludes torrents by name
type Blacklist interface {
	IsBlacklisted(name string) (bool, string)
}

// Options configures a Ranker
type Options struct {
	PreferredLanguages []string
	MinSimilarity      float64
	Blacklist          Blacklist
	FileLister         FileLister
	FileListPolicy     retry.Policy
	Metrics            *metrics.Metrics
	Logger             zerolog.Logger
}

// ScoredCandidate is a candidate that passed every gate
type ScoredCandidate struct {
	Candidate  models.TorrentCandidate `json:"candidate"`
	Score      float64                 `json:"score"`
	Similarity float64                 `json:"similarity"`
	FileIndex  *int                    `json:"file_index,omitempty"` // nil means the provider default (largest file)
	FilePath   string                  `json:"file_path,omitempty"`
	Language   string                  `json:"language,omitempty"`
	Descriptor parser.Descriptor       `json:"descriptor"`
}

// Rejection is a candidate dropped from the ranking, with the reason
type Rejection struct {
	Candidate models.TorrentCandidate `json:"candidate"`
	Reason    string                  `json:"reason"`
	Detail    string                  `json:"detail,omitempty"`
}

func (r Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s rejected: %s", r.Candidate.Name, r.Reason)
	}
	return fmt.Sprintf("%s rejected: %s (%s)", r.Candidate.Name, r.Reason, r.Detail)
}

// Result holds the ranked candidates, best first, and the rejected ones
type Result struct {
	Ranked   []ScoredCandidate
	Rejected []Rejection
}

// Best returns the top ranked candidate
func (r Result) Best() (ScoredCandidate, bool) {
	if len(r.Ranked) == 0 {
		return ScoredCandidate{}, false
	}
	return r.Ranked[0], true
}

// Ranker scores candidates against a target
type Ranker struct {
	opts      Options
	preferred []string
}

// New creates a ranker
func New(opts Options) *Ranker {
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = DefaultMinSimilarity
	}
	preferred := make([]string, 0, len(opts.PreferredLanguages))
	for _, lang := range opts.PreferredLanguages {
		if code := parser.CanonicalLanguage(lang); code != "" {
			preferred = append(preferred, code)
		}
	}
	return &Ranker{opts: opts, preferred: preferred}
}

// outcome is either a score or a rejection
type outcome struct {
	scored   *ScoredCandidate
	rejected *Rejection
}

// Rank scores every candidate and orders the accepted ones by descending
// score, seeders breaking ties
func (r *Ranker) Rank(ctx context.Context, candidates []models.TorrentCandidate, target Target) Result {
	outcomes := make([]outcome, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fileListWorkers)
	for i := range candidates {
		g.Go(func() error {
			outcomes[i] = r.score(gctx, candidates[i], target)
			return nil
		})
	}
	_ = g.Wait()

	var result Result
	for _, o := range outcomes {
		if o.rejected != nil {
			result.Rejected = append(result.Rejected, *o.rejected)
			r.count(o.rejected.Reason)
			continue
		}
		result.Ranked = append(result.Ranked, *o.scored)
		r.count("accepted")
	}

	sort.SliceStable(result.Ranked, func(i, j int) bool {
		a, b := result.Ranked[i], result.Ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Candidate.Seeders > b.Candidate.Seeders
	})

	r.opts.Logger.Debug().
		Str("title", target.Title).
		Int("ranked", len(result.Ranked)).
		Int("rejected", len(result.Rejected)).
		Msg("Ranked candidates")
	return result
}

func (r *Ranker) score(ctx context.Context, c models.TorrentCandidate, target Target) outcome {
	reject := func(reason, detail string) outcome {
		return outcome{rejected: &Rejection{Candidate: c, Reason: reason, Detail: detail}}
	}

	if r.opts.Blacklist != nil {
		if hit, term := r.opts.Blacklist.IsBlacklisted(c.Name); hit {
			return reject(ReasonBlacklisted, term)
		}
	}

	d := parser.Parse(c.Name)
	sim := similarity.Similarity(d.Title, target.Title)
	if sim < r.opts.MinSimilarity {
		return reject(ReasonLowSimilarity, fmt.Sprintf("%q vs %q: %.2f", d.Title, target.Title, sim))
	}

	scored := ScoredCandidate{Candidate: c, Similarity: sim, Descriptor: d}

	if target.Type == models.MediaTypeMovie {
		if !matcher.MatchMovie(d, target.Year) {
			return reject(ReasonWrongMovie, fmt.Sprintf("year %d", d.Year))
		}
	} else {
		switch matcher.MatchTorrent(d, target.Season, target.Episode) {
		case matcher.Mismatch:
			return reject(ReasonWrongEpisode, "")
		case matcher.NeedsFiles:
			files, err := r.files(ctx, c)
			if err != nil || len(files) == 0 {
				detail := "no file list"
				if err != nil {
					detail = err.Error()
				}
				return reject(ReasonNoFiles, detail)
			}
			fm, ok := matcher.SelectFile(files, target.Season, target.Episode, target.Title, matcher.FallbackSeason(d, target.Season))
			if !ok {
				return reject(ReasonNoFileMatch, "")
			}
			index := fm.Index
			scored.FileIndex = &index
			scored.FilePath = fm.Path
		}
	}

	langScore, lang := r.languageScore(c, d)
	scored.Language = lang
	scored.Score = sim*similarityWeight + matchBonus + langScore +
		utils.QualityBonus(d.Resolution, d.HDR, d.DolbyVision) +
		seederBonus(c.Seeders)

	return outcome{scored: &scored}
}

func (r *Ranker) files(ctx context.Context, c models.TorrentCandidate) ([]models.TorrentFile, error) {
	if c.HasFiles() {
		return c.Files, nil
	}
	if r.opts.FileLister == nil {
		return nil, nil
	}
	return retry.Value(ctx, r.opts.FileListPolicy, func() ([]models.TorrentFile, error) {
		return r.opts.FileLister.Files(ctx, c.InfoHash)
	}, func(err error, attempt int, wait time.Duration) {
		r.opts.Logger.Warn().Err(err).Str("hash", c.InfoHash).Int("attempt", attempt).Msg("File listing failed, retrying")
	})
}

// languageScore ranks the candidate's language against the preference list.
// Declared languages win over the tag parsed from the name.
func (r *Ranker) languageScore(c models.TorrentCandidate, d parser.Descriptor) (float64, string) {
	var languages []string
	for _, lang := range c.Languages {
		if code := parser.CanonicalLanguage(lang); code != "" {
			languages = append(languages, code)
		}
	}
	if len(languages) == 0 && d.Language != "" {
		languages = append(languages, d.Language)
	}
	if len(languages) == 0 {
		return unknownLanguageScore, ""
	}

	for i, pref := range r.preferred {
		for _, lang := range languages {
			if lang == pref {
				return r.preferenceScore(i), lang
			}
		}
	}
	if languages[0] == parser.LanguageMulti {
		return unknownLanguageScore, languages[0]
	}
	return 0, languages[0]
}

// preferenceScore is strictly decreasing in the preference index for any
// list length and never drops below minPreferenceScore.
func (r *Ranker) preferenceScore(i int) float64 {
	slots := max(len(r.preferred), (firstPreferenceScore-minPreferenceScore)/preferenceStep+1)
	return minPreferenceScore + float64(slots-1-i)*preferenceStep
}

func seederBonus(seeders int) float64 {
	if seeders <= 0 {
		return 0
	}
	return min(float64(seeders)*seederWeight, maxSeederBonus)
}

func (r *Ranker) count(outcome string) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.RankOutcomes.WithLabelValues(outcome).Inc()
	}
}
