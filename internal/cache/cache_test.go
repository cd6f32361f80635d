package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostreamarr/internal/models"
)

// memoryStore is an in-memory Store keyed like the database unique index
type memoryStore struct {
	mu      sync.Mutex
	records map[string]*models.ResolutionRecord
	touched int
	nextID  uint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*models.ResolutionRecord)}
}

func (s *memoryStore) GetRecord(ctx context.Context, key models.ResolutionKey) (*models.ResolutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key.String()]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *memoryStore) FindCompatible(ctx context.Context, infoHash string, mediaType models.MediaType) ([]*models.ResolutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ResolutionRecord
	for _, r := range s.records {
		if r.Key().String() == (models.ResolutionKey{InfoHash: infoHash, MediaType: mediaType, MediaID: r.MediaID}).String() {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) UpsertRecord(ctx context.Context, record *models.ResolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record.ID = s.nextID
	copied := *record
	s.records[record.Key().String()] = &copied
	return nil
}

func (s *memoryStore) TouchRecord(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched++
	return nil
}

var seriesKey = models.ResolutionKey{InfoHash: "abc123", MediaType: models.MediaTypeSeries, MediaID: "tt1:1:5"}

func TestResolveRunsWorkflowOnceForConcurrentCallers(t *testing.T) {
	store := newMemoryStore()
	c := New(store, zerolog.Nop(), nil)

	var runs int32
	release := make(chan struct{})
	produce := func(ctx context.Context) (*models.ResolutionRecord, error) {
		atomic.AddInt32(&runs, 1)
		<-release
		return &models.ResolutionRecord{DirectLink: "https://cdn.example/e05"}, nil
	}

	type outcome struct {
		record *models.ResolutionRecord
		err    error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			r, err := c.Resolve(context.Background(), Request{Key: seriesKey}, produce)
			results <- outcome{r, err}
		}()
	}

	require.Eventually(t, func() bool { return c.Waiting(seriesKey) == 2 }, 2*time.Second, 5*time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		o := <-results
		require.NoError(t, o.err)
		assert.Equal(t, "https://cdn.example/e05", o.record.DirectLink)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, 0, c.Waiting(seriesKey))

	stored, err := store.GetRecord(context.Background(), seriesKey)
	require.NoError(t, err)
	assert.Equal(t, "tt1:1:5", stored.MediaID)
}

func TestResolveSharesFailureAndClearsEntry(t *testing.T) {
	c := New(newMemoryStore(), zerolog.Nop(), nil)
	boom := errors.New("provider down")

	var runs int32
	release := make(chan struct{})
	failing := func(ctx context.Context) (*models.ResolutionRecord, error) {
		atomic.AddInt32(&runs, 1)
		<-release
		return nil, boom
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.Resolve(context.Background(), Request{Key: seriesKey}, failing)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return c.Waiting(seriesKey) == 2 }, 2*time.Second, 5*time.Millisecond)
	close(release)

	assert.ErrorIs(t, <-errs, boom)
	assert.ErrorIs(t, <-errs, boom)
	assert.Equal(t, 0, c.Waiting(seriesKey))

	// a later request starts a fresh workflow
	record, err := c.Resolve(context.Background(), Request{Key: seriesKey}, func(ctx context.Context) (*models.ResolutionRecord, error) {
		atomic.AddInt32(&runs, 1)
		return &models.ResolutionRecord{DirectLink: "https://cdn.example/ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/ok", record.DirectLink)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2))
}

func TestResolveReturnsStoredRecord(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.UpsertRecord(context.Background(), &models.ResolutionRecord{
		InfoHash: seriesKey.InfoHash, MediaType: seriesKey.MediaType, MediaID: seriesKey.MediaID,
		DirectLink: "https://cdn.example/stored",
	}))
	c := New(store, zerolog.Nop(), nil)

	record, err := c.Resolve(context.Background(), Request{Key: seriesKey}, func(ctx context.Context) (*models.ResolutionRecord, error) {
		t.Fatal("workflow must not run for a stored key")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/stored", record.DirectLink)
	assert.Equal(t, 1, store.touched)
}

func TestResolveRederivesFromCompatibleRecord(t *testing.T) {
	store := newMemoryStore()
	pack := &models.ResolutionRecord{
		InfoHash: seriesKey.InfoHash, MediaType: seriesKey.MediaType, MediaID: "tt1:1:4",
		DirectLink: "https://cdn.example/e04",
	}
	require.NoError(t, pack.SetTorrent(&models.ProviderTorrent{ID: "T1"}))
	require.NoError(t, store.UpsertRecord(context.Background(), pack))
	c := New(store, zerolog.Nop(), nil)

	var rederived []string
	rederive := func(ctx context.Context, record *models.ResolutionRecord, filePath string) (*models.ResolutionRecord, error) {
		rederived = append(rederived, record.MediaID)
		if filePath != "Show S01E05.mkv" {
			return nil, models.ErrNotFound
		}
		derived := *record
		derived.DirectLink = "https://cdn.example/e05"
		return &derived, nil
	}

	record, err := c.Resolve(context.Background(), Request{Key: seriesKey, FilePath: "Show S01E05.mkv", Rederive: rederive},
		func(ctx context.Context) (*models.ResolutionRecord, error) {
			t.Fatal("workflow must not run when a compatible record covers the file")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/e05", record.DirectLink)
	assert.Equal(t, "tt1:1:5", record.MediaID)
	assert.Equal(t, []string{"tt1:1:4"}, rederived)

	stored, err := store.GetRecord(context.Background(), seriesKey)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/e05", stored.DirectLink)

	// a file the stored torrent does not cover falls through to the workflow
	other := models.ResolutionKey{InfoHash: seriesKey.InfoHash, MediaType: seriesKey.MediaType, MediaID: "tt1:1:9"}
	var runs int
	_, err = c.Resolve(context.Background(), Request{Key: other, FilePath: "Show S01E09.mkv", Rederive: rederive},
		func(ctx context.Context) (*models.ResolutionRecord, error) {
			runs++
			return &models.ResolutionRecord{DirectLink: "https://cdn.example/e09"}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}

func TestResolveRederivesOnceForConcurrentCallers(t *testing.T) {
	store := newMemoryStore()
	pack := &models.ResolutionRecord{
		InfoHash: seriesKey.InfoHash, MediaType: seriesKey.MediaType, MediaID: "tt1:1:4",
		DirectLink: "https://cdn.example/e04",
	}
	require.NoError(t, store.UpsertRecord(context.Background(), pack))
	c := New(store, zerolog.Nop(), nil)

	var rederives int32
	release := make(chan struct{})
	rederive := func(ctx context.Context, record *models.ResolutionRecord, filePath string) (*models.ResolutionRecord, error) {
		atomic.AddInt32(&rederives, 1)
		<-release
		derived := *record
		derived.DirectLink = "https://cdn.example/e05"
		return &derived, nil
	}
	produce := func(ctx context.Context) (*models.ResolutionRecord, error) {
		t.Error("workflow must not run when a compatible record covers the file")
		return nil, errors.New("unexpected workflow run")
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			record, err := c.Resolve(context.Background(), Request{Key: seriesKey, FilePath: "Show S01E05.mkv", Rederive: rederive}, produce)
			if err == nil && record.DirectLink != "https://cdn.example/e05" {
				err = errors.New("unexpected link " + record.DirectLink)
			}
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return c.Waiting(seriesKey) == 2 }, 2*time.Second, 5*time.Millisecond)
	close(release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rederives))
}

func TestResolveCallerCancellationDoesNotAbortWorkflow(t *testing.T) {
	store := newMemoryStore()
	c := New(store, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	done := make(chan struct{})
	produce := func(ctx context.Context) (*models.ResolutionRecord, error) {
		defer close(done)
		<-release
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &models.ResolutionRecord{DirectLink: "https://cdn.example/late"}, nil
	}

	errs := make(chan error, 1)
	go func() {
		_, err := c.Resolve(ctx, Request{Key: seriesKey}, produce)
		errs <- err
	}()
	require.Eventually(t, func() bool { return c.Waiting(seriesKey) == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	close(release)
	<-done
	require.Eventually(t, func() bool {
		_, err := store.GetRecord(context.Background(), seriesKey)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestResolveWithDatabaseStore(t *testing.T) {
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := New(db, zerolog.Nop(), nil)
	produce := func(ctx context.Context) (*models.ResolutionRecord, error) {
		return &models.ResolutionRecord{DirectLink: "https://cdn.example/db", Quality: models.Quality1080p}, nil
	}

	first, err := c.Resolve(context.Background(), Request{Key: seriesKey}, produce)
	require.NoError(t, err)

	second, err := c.Resolve(context.Background(), Request{Key: seriesKey}, func(ctx context.Context) (*models.ResolutionRecord, error) {
		return nil, errors.New("must not run")
	})
	require.NoError(t, err)
	assert.Equal(t, first.DirectLink, second.DirectLink)
	assert.Equal(t, models.Quality1080p, second.Quality)
}
