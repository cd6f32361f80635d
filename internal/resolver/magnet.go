package resolver

import (
	"fmt"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/amaumene/gostreamarr/internal/models"
)

// Magnet returns the candidate's magnet, building one from the info hash when
// the indexer did not supply it
func Magnet(c models.TorrentCandidate) (string, error) {
	if c.Magnet != "" {
		return c.Magnet, nil
	}
	var h metainfo.Hash
	if err := h.FromHexString(c.InfoHash); err != nil {
		return "", fmt.Errorf("invalid info hash %q: %w", c.InfoHash, err)
	}
	m := metainfo.Magnet{InfoHash: h, DisplayName: c.Name}
	return m.String(), nil
}
