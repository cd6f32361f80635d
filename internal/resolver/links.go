package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amaumene/gostreamarr/internal/models"
)

// LinkForFile finds the provider link of a file of the torrent. An empty
// filePath picks the largest selected file. Links follow the order of the
// selected files.
func LinkForFile(t *models.ProviderTorrent, filePath string) (string, models.ProviderFile, bool) {
	if t == nil || len(t.Links) == 0 {
		return "", models.ProviderFile{}, false
	}

	selected := t.SelectedFiles()
	if len(selected) != len(t.Links) {
		// provider merged or dropped links, only a lone link is unambiguous
		if filePath == "" && len(t.Links) == 1 {
			return t.Links[0], models.ProviderFile{}, true
		}
		return "", models.ProviderFile{}, false
	}

	if filePath == "" {
		best := 0
		for i, f := range selected {
			if f.Bytes > selected[best].Bytes {
				best = i
			}
		}
		return t.Links[best], selected[best], true
	}

	for i, f := range selected {
		if samePath(f.Path, filePath) {
			return t.Links[i], f, true
		}
	}
	return "", models.ProviderFile{}, false
}

// samePath compares torrent paths loosely: providers often drop the torrent
// directory and add a leading slash
func samePath(providerPath, filePath string) bool {
	a := strings.ToLower(strings.TrimPrefix(strings.ReplaceAll(providerPath, `\`, "/"), "/"))
	b := strings.ToLower(strings.TrimPrefix(strings.ReplaceAll(filePath, `\`, "/"), "/"))
	if a == b {
		return true
	}
	return strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a)
}

// Rederive maps a stored workflow result onto another file of the same
// torrent and unrestricts that link, without running the workflow again
func (w *Workflow) Rederive(ctx context.Context, record *models.ResolutionRecord, filePath string) (*models.ResolutionRecord, error) {
	ctx, span := w.tracer.Start(ctx, "resolver.rederive")
	defer span.End()
	w.logger.Debug().Str("hash", record.InfoHash).Str("file", filePath).Msg("Re-deriving link from stored provider torrent")

	t, err := record.Torrent()
	if err != nil {
		return nil, fmt.Errorf("record %d has no provider info: %w", record.ID, err)
	}
	link, file, ok := LinkForFile(t, filePath)
	if !ok {
		return nil, fmt.Errorf("file %q not in provider torrent %s: %w", filePath, t.ID, models.ErrNotFound)
	}

	var direct string
	err = w.call(ctx, "unrestrict", func(ctx context.Context) error {
		var err error
		direct, err = w.provider.Unrestrict(ctx, link)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: unrestrict: %w", ErrFailed, err)
	}

	derived := *record
	derived.ID = 0
	derived.CreatedAt = time.Time{}
	derived.FileIndex = nil
	derived.DirectLink = direct
	derived.FilePath = file.Path
	if file.Path == "" {
		derived.FilePath = filePath
	}
	return &derived, nil
}
