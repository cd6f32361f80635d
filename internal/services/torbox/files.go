package torbox

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/amaumene/gostreamarr/internal/models"
)

// CachedFile is a file of a cached torrent
type CachedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// CachedTorrent is one entry of the checkcached answer
type CachedTorrent struct {
	Name  string       `json:"name"`
	Size  int64        `json:"size"`
	Hash  string       `json:"hash"`
	Files []CachedFile `json:"files"`
}

// CheckCachedResponse represents the response from checkcached in list format
type CheckCachedResponse struct {
	Success bool            `json:"success"`
	Error   *string         `json:"error"`
	Detail  string          `json:"detail"`
	Data    []CachedTorrent `json:"data"`
}

// Files returns the file list of a cached torrent. Torrents TorBox has not
// cached yield an empty list.
func (c *Client) Files(ctx context.Context, infoHash string) ([]models.TorrentFile, error) {
	params := url.Values{}
	params.Set("hash", strings.ToLower(infoHash))
	params.Set("format", "list")
	params.Set("list_files", "true")

	var result CheckCachedResponse
	if err := c.get(ctx, "/torrents/checkcached", params, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("checkcached failed: %s", result.Detail)
	}

	for _, t := range result.Data {
		if !strings.EqualFold(t.Hash, infoHash) {
			continue
		}
		files := make([]models.TorrentFile, 0, len(t.Files))
		for i, f := range t.Files {
			files = append(files, models.TorrentFile{Path: f.Name, Size: f.Size, Index: i})
		}
		c.logger.Debug().Str("hash", infoHash).Int("files", len(files)).Msg("Listed cached torrent files")
		return files, nil
	}

	c.logger.Debug().Str("hash", infoHash).Msg("Torrent not cached, no file list")
	return nil, nil
}
