package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amaumene/gostreamarr/internal/metrics"
	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/retry"
)

// State is a step of the resolution workflow
type State string

const (
	StateInit          State = "INIT"
	StateSubmitted     State = "SUBMITTED"
	StateFilesSelected State = "FILES_SELECTED"
	StatePolling       State = "POLLING"
	StateReady         State = "READY"
	StateFailed        State = "FAILED"
	StateTimeout       State = "TIMEOUT"
)

// Job is one torrent to turn into a direct link
type Job struct {
	Key       models.ResolutionKey
	Candidate models.TorrentCandidate
	FileIndex *int
	FilePath  string
	Language  string
	Quality   models.Quality
}

// Option customizes a Workflow
type Option func(*Workflow)

// WithSleeper overrides how polling waits are performed (useful for tests)
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Workflow) {
		if sleep != nil {
			w.sleep = sleep
		}
	}
}

// WithLogger sets the workflow logger
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// WithTracer sets the tracer used for workflow spans
func WithTracer(tracer trace.Tracer) Option {
	return func(w *Workflow) {
		if tracer != nil {
			w.tracer = tracer
		}
	}
}

// WithMetrics records workflow outcomes and provider calls
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// Workflow drives a torrent through the provider:
// INIT → SUBMITTED → FILES_SELECTED → POLLING → READY, or FAILED / TIMEOUT.
type Workflow struct {
	provider   Provider
	callPolicy retry.Policy
	pollPolicy retry.Policy
	sleep      func(context.Context, time.Duration) error
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewWorkflow creates a workflow. callPolicy wraps every provider call,
// pollPolicy bounds the status polling schedule.
func NewWorkflow(provider Provider, callPolicy, pollPolicy retry.Policy, opts ...Option) *Workflow {
	w := &Workflow{
		provider:   provider,
		callPolicy: callPolicy,
		pollPolicy: pollPolicy,
		sleep:      sleepContext,
		tracer:     otel.Tracer("github.com/amaumene/gostreamarr/internal/resolver"),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WithProvider returns a copy of the workflow talking to another provider,
// e.g. the same service authenticated with a caller's token
func (w *Workflow) WithProvider(p Provider) *Workflow {
	c := *w
	c.provider = p
	return &c
}

// Run executes the workflow for job. Failures wrap ErrFailed or ErrTimeout.
func (w *Workflow) Run(ctx context.Context, job Job) (*models.ResolutionRecord, error) {
	ctx, span := w.tracer.Start(ctx, "resolver.run", trace.WithAttributes(
		attribute.String("info_hash", job.Candidate.InfoHash),
		attribute.String("media_id", job.Key.MediaID),
	))
	defer span.End()

	log := w.logger.With().
		Str("hash", job.Candidate.InfoHash).
		Str("media_id", job.Key.MediaID).
		Logger()

	start := time.Now()
	record, state, err := w.run(ctx, job, log)

	span.SetAttributes(attribute.String("state", string(state)))
	if w.metrics != nil {
		w.metrics.WorkflowOutcomes.WithLabelValues(string(state)).Inc()
		w.metrics.WorkflowDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(state))
		log.Warn().Err(err).Str("state", string(state)).Msg("Resolution workflow ended without a link")
		return nil, err
	}

	log.Info().Str("state", string(state)).Dur("took", time.Since(start)).Msg("Resolution workflow ready")
	return record, nil
}

func (w *Workflow) run(ctx context.Context, job Job, log zerolog.Logger) (*models.ResolutionRecord, State, error) {
	magnet, err := Magnet(job.Candidate)
	if err != nil {
		return nil, StateFailed, fmt.Errorf("%w: %w", ErrFailed, err)
	}

	// INIT → SUBMITTED
	var torrentID string
	err = w.call(ctx, "submit", func(ctx context.Context) error {
		var err error
		torrentID, err = w.provider.Submit(ctx, magnet)
		return err
	})
	if err != nil {
		return nil, StateFailed, fmt.Errorf("%w: submit: %w", ErrFailed, err)
	}
	log.Debug().Str("state", string(StateSubmitted)).Str("torrent_id", torrentID).Msg("Torrent submitted")

	// SUBMITTED → FILES_SELECTED
	sel := FileSelector{Index: job.FileIndex, Path: job.FilePath}
	err = w.call(ctx, "select_files", func(ctx context.Context) error {
		return w.provider.SelectFiles(ctx, torrentID, sel)
	})
	if err != nil {
		return nil, StateFailed, fmt.Errorf("%w: select files: %w", ErrFailed, err)
	}
	log.Debug().Str("state", string(StateFilesSelected)).Bool("all_files", sel.All()).Msg("Files selected")

	// FILES_SELECTED → POLLING → READY
	torrent, err := w.poll(ctx, torrentID, log)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return nil, StateTimeout, err
		}
		return nil, StateFailed, err
	}

	link, file, ok := LinkForFile(torrent, job.FilePath)
	if !ok && job.FilePath != "" {
		log.Warn().Str("file", job.FilePath).Msg("Matched file not found in provider torrent, using largest selected file")
		link, file, ok = LinkForFile(torrent, "")
	}
	if !ok {
		return nil, StateFailed, fmt.Errorf("%w: no link for torrent %s", ErrFailed, torrentID)
	}

	var direct string
	err = w.call(ctx, "unrestrict", func(ctx context.Context) error {
		var err error
		direct, err = w.provider.Unrestrict(ctx, link)
		return err
	})
	if err != nil {
		return nil, StateFailed, fmt.Errorf("%w: unrestrict: %w", ErrFailed, err)
	}

	record := &models.ResolutionRecord{
		InfoHash:          strings.ToLower(job.Candidate.InfoHash),
		MediaType:         job.Key.MediaType,
		MediaID:           job.Key.MediaID,
		ProviderTorrentID: torrentID,
		SelectedFiles:     selectedIDs(torrent),
		FileIndex:         job.FileIndex,
		FilePath:          file.Path,
		DirectLink:        direct,
		Language:          job.Language,
		Quality:           job.Quality,
		Seeders:           job.Candidate.Seeders,
	}
	if record.FilePath == "" {
		record.FilePath = job.FilePath
	}
	if err := record.SetTorrent(torrent); err != nil {
		return nil, StateFailed, fmt.Errorf("%w: encode provider torrent: %w", ErrFailed, err)
	}
	return record, StateReady, nil
}

// poll checks the torrent status on the poll policy schedule until the
// provider reports a terminal status or the attempt budget runs out
func (w *Workflow) poll(ctx context.Context, torrentID string, log zerolog.Logger) (*models.ProviderTorrent, error) {
	ctx, span := w.tracer.Start(ctx, "resolver.poll")
	defer span.End()

	schedule := w.pollPolicy.NewBackOff()
	attempts := max(w.pollPolicy.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		var torrent *models.ProviderTorrent
		err := w.call(ctx, "status", func(ctx context.Context) error {
			var err error
			torrent, err = w.provider.Status(ctx, torrentID)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: status: %w", ErrFailed, err)
		}

		switch torrent.Status {
		case StatusFailed:
			return nil, fmt.Errorf("%w: provider reported torrent %s as failed", ErrFailed, torrentID)
		case StatusCompleted:
			if len(torrent.Links) == 0 {
				return nil, fmt.Errorf("%w: torrent %s completed without links", ErrFailed, torrentID)
			}
			span.SetAttributes(attribute.Int("attempts", attempt))
			return torrent, nil
		}

		if attempt == attempts {
			break
		}
		wait := schedule.NextBackOff()
		log.Debug().Str("state", string(StatePolling)).Int("attempt", attempt).Dur("wait", wait).Msg("Torrent not ready")
		if err := w.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("attempts", attempts))
	return nil, fmt.Errorf("%w: torrent %s still pending after %d status checks", ErrTimeout, torrentID, attempts)
}

// call runs one provider operation under the call retry policy in its own span
func (w *Workflow) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := w.tracer.Start(ctx, "resolver."+op)
	defer span.End()

	err := retry.Do(ctx, w.callPolicy, func() error {
		return fn(ctx)
	}, func(err error, attempt int, wait time.Duration) {
		w.logger.Warn().Err(err).Str("operation", op).Int("attempt", attempt).Dur("wait", wait).Msg("Provider call failed, retrying")
	})

	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
	}
	if w.metrics != nil {
		w.metrics.ProviderCalls.WithLabelValues(op, result).Inc()
	}
	return err
}

func selectedIDs(t *models.ProviderTorrent) string {
	selected := t.SelectedFiles()
	if len(selected) == 0 || len(selected) == len(t.Files) {
		return "all"
	}
	ids := make([]string, len(selected))
	for i, f := range selected {
		ids[i] = strconv.Itoa(f.ID)
	}
	return strings.Join(ids, ",")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
