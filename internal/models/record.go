package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ResolutionKey identifies one "turn this torrent into a link" workflow
type ResolutionKey struct {
	InfoHash  string
	MediaType MediaType
	MediaID   string // optional
}

// String is the coalescing key used for in-flight deduplication
func (k ResolutionKey) String() string {
	s := strings.ToLower(k.InfoHash) + "|" + string(k.MediaType)
	if k.MediaID != "" {
		s += "|" + k.MediaID
	}
	return s
}

// ProviderFile is a file as the resolution provider reports it
type ProviderFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected bool   `json:"selected"`
}

// ProviderTorrent is the provider-side view of a submitted torrent. Links are
// ordered like the selected files.
type ProviderTorrent struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Files  []ProviderFile `json:"files"`
	Links  []string       `json:"links"`
}

// SelectedFiles returns the selected files in provider order
func (t *ProviderTorrent) SelectedFiles() []ProviderFile {
	var selected []ProviderFile
	for _, f := range t.Files {
		if f.Selected {
			selected = append(selected, f)
		}
	}
	return selected
}

// ResolutionRecord is the persisted result of a completed workflow
type ResolutionRecord struct {
	ID uint `gorm:"primaryKey"`

	InfoHash  string    `gorm:"uniqueIndex:idx_resolution_key;index:idx_hash_type;not null"`
	MediaType MediaType `gorm:"uniqueIndex:idx_resolution_key;index:idx_hash_type;not null"`
	MediaID   string    `gorm:"uniqueIndex:idx_resolution_key"`

	ProviderTorrentID string
	SelectedFiles     string // "all" or comma separated provider file ids
	FileIndex         *int
	FilePath          string
	DirectLink        string
	ProviderInfo      string // JSON encoded ProviderTorrent

	Language string
	Quality  Quality
	Seeders  int

	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Key returns the resolution key the record was stored under
func (r *ResolutionRecord) Key() ResolutionKey {
	return ResolutionKey{InfoHash: r.InfoHash, MediaType: r.MediaType, MediaID: r.MediaID}
}

// Torrent decodes the stored provider torrent info
func (r *ResolutionRecord) Torrent() (*ProviderTorrent, error) {
	if r.ProviderInfo == "" {
		return nil, ErrNotFound
	}
	var t ProviderTorrent
	if err := json.Unmarshal([]byte(r.ProviderInfo), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SetTorrent encodes the provider torrent info into the record
func (r *ResolutionRecord) SetTorrent(t *ProviderTorrent) error {
	if t == nil {
		r.ProviderInfo = ""
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	r.ProviderInfo = string(data)
	return nil
}
