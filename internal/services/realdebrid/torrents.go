package realdebrid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/resolver"
)

// TorrentFile is a file as listed by /torrents/info
type TorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

// TorrentInfo represents the response from /torrents/info/{id}
type TorrentInfo struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Hash     string        `json:"hash"`
	Bytes    int64         `json:"bytes"`
	Status   string        `json:"status"`
	Progress float64       `json:"progress"`
	Files    []TorrentFile `json:"files"`
	Links    []string      `json:"links"`
}

// AddMagnetResponse represents the response from /torrents/addMagnet
type AddMagnetResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// UnrestrictResponse represents the response from /unrestrict/link
type UnrestrictResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Download string `json:"download"`
}

// NormalizeStatus maps Real-Debrid torrent statuses onto the resolver's
func NormalizeStatus(status string) string {
	switch status {
	case "magnet_error", "error", "virus", "dead":
		return resolver.StatusFailed
	case "downloaded":
		return resolver.StatusCompleted
	default:
		// magnet_conversion, waiting_files_selection, queued, downloading, compressing, uploading
		return resolver.StatusPending
	}
}

// Submit adds a magnet and returns the torrent id
func (c *Client) Submit(ctx context.Context, magnet string) (string, error) {
	form := url.Values{}
	form.Set("magnet", magnet)

	var result AddMagnetResponse
	if err := c.doRequest(ctx, http.MethodPost, "/torrents/addMagnet", form, &result); err != nil {
		return "", fmt.Errorf("failed to add magnet: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("failed to add magnet: empty torrent id")
	}

	c.logger.Debug().Str("torrent_id", result.ID).Msg("Magnet added")
	return result.ID, nil
}

// SelectFiles selects the file matching sel, or every file. Real-Debrid file
// ids are only known once the magnet is converted, so a selector on a torrent
// still converting returns a retryable error.
func (c *Client) SelectFiles(ctx context.Context, torrentID string, sel resolver.FileSelector) error {
	files := "all"
	if !sel.All() {
		info, err := c.info(ctx, torrentID)
		if err != nil {
			return err
		}
		if len(info.Files) == 0 {
			return fmt.Errorf("torrent %s has no file list yet (status %s)", torrentID, info.Status)
		}
		if id, ok := fileID(info.Files, sel); ok {
			files = strconv.Itoa(id)
		} else {
			c.logger.Warn().
				Str("torrent_id", torrentID).
				Str("path", sel.Path).
				Msg("Requested file not in torrent, selecting all files")
		}
	}

	form := url.Values{}
	form.Set("files", files)
	if err := c.doRequest(ctx, http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(torrentID), form, nil); err != nil {
		return fmt.Errorf("failed to select files: %w", err)
	}
	return nil
}

// Status returns the torrent with its status normalised
func (c *Client) Status(ctx context.Context, torrentID string) (*models.ProviderTorrent, error) {
	info, err := c.info(ctx, torrentID)
	if err != nil {
		return nil, err
	}

	torrent := &models.ProviderTorrent{
		ID:     info.ID,
		Status: NormalizeStatus(info.Status),
		Links:  info.Links,
	}
	for _, f := range info.Files {
		torrent.Files = append(torrent.Files, models.ProviderFile{
			ID:       f.ID,
			Path:     f.Path,
			Bytes:    f.Bytes,
			Selected: f.Selected == 1,
		})
	}
	return torrent, nil
}

// Unrestrict turns a hoster link into a direct download URL
func (c *Client) Unrestrict(ctx context.Context, link string) (string, error) {
	form := url.Values{}
	form.Set("link", link)

	var result UnrestrictResponse
	if err := c.doRequest(ctx, http.MethodPost, "/unrestrict/link", form, &result); err != nil {
		return "", fmt.Errorf("failed to unrestrict link: %w", err)
	}
	if result.Download == "" {
		return "", fmt.Errorf("failed to unrestrict link: no download url")
	}
	return result.Download, nil
}

func (c *Client) info(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	var info TorrentInfo
	if err := c.doRequest(ctx, http.MethodGet, "/torrents/info/"+url.PathEscape(torrentID), nil, &info); err != nil {
		return nil, fmt.Errorf("failed to get torrent info: %w", err)
	}
	return &info, nil
}

// fileID finds the Real-Debrid id of the selected file. Paths are compared
// without the leading slash Real-Debrid adds; indexes count from zero while
// ids count from one.
func fileID(files []TorrentFile, sel resolver.FileSelector) (int, bool) {
	if sel.Path != "" {
		want := strings.ToLower(strings.TrimPrefix(sel.Path, "/"))
		for _, f := range files {
			got := strings.ToLower(strings.TrimPrefix(f.Path, "/"))
			if got == want || strings.HasSuffix(want, "/"+got) || strings.HasSuffix(got, "/"+want) {
				return f.ID, true
			}
		}
	}
	if sel.Index != nil {
		for _, f := range files {
			if f.ID == *sel.Index+1 {
				return f.ID, true
			}
		}
	}
	return 0, false
}

var _ resolver.Provider = (*Client)(nil)
