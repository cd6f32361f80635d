package resolver

import (
	"context"
	"errors"

	"github.com/amaumene/gostreamarr/internal/models"
)

var (
	// ErrFailed means the provider rejected the torrent or reported it dead
	ErrFailed = errors.New("resolution failed")
	// ErrTimeout means the torrent never completed within the polling budget
	ErrTimeout = errors.New("resolution timed out")
)

// Normalised provider statuses. Adapters map their own vocabulary onto these.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// FileSelector tells the provider which files to materialise. The zero value
// selects every file.
type FileSelector struct {
	Index *int   // file index in the torrent as listed by the indexer
	Path  string // file path in the torrent, preferred over Index when set
}

// All reports whether every file should be selected
func (s FileSelector) All() bool {
	return s.Index == nil && s.Path == ""
}

// Provider is the download-unlocking service that turns torrents into links
type Provider interface {
	// Submit adds a magnet and returns the provider torrent id
	Submit(ctx context.Context, magnet string) (string, error)
	SelectFiles(ctx context.Context, torrentID string, sel FileSelector) error
	// Status returns the torrent with Status normalised to one of the Status* values
	Status(ctx context.Context, torrentID string) (*models.ProviderTorrent, error)
	Unrestrict(ctx context.Context, link string) (string, error)
}
