package handlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/amaumene/gostreamarr/internal/models"
	"github.com/amaumene/gostreamarr/internal/ranker"
)

const noStream = "no stream available"

// StreamLister returns ranked candidates for a media request
type StreamLister interface {
	Streams(ctx context.Context, req models.MediaRequest) ([]ranker.ScoredCandidate, error)
}

// Player resolves a chosen candidate into a direct link
type Player interface {
	Play(ctx context.Context, req models.MediaRequest, infoHash, token string) (string, error)
}

// Stream is one entry of the stream list
type Stream struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	InfoHash string `json:"infoHash"`
	FileIdx  *int   `json:"fileIdx,omitempty"`
	URL      string `json:"url,omitempty"`
}

// StreamsResponse is the body of the stream endpoints
type StreamsResponse struct {
	Streams []Stream `json:"streams"`
}

// StreamHandler serves stream lists and play redirects
type StreamHandler struct {
	lister StreamLister
	player Player
	logger zerolog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(lister StreamLister, player Player, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		lister: lister,
		player: player,
		logger: logger,
	}
}

// List serves GET /stream/:type/:id and GET /:token/stream/:type/:id. With a
// token every stream carries a play URL for that account.
func (h *StreamHandler) List(c *fiber.Ctx) error {
	response := StreamsResponse{Streams: []Stream{}}

	req, err := mediaRequest(c)
	if err != nil {
		h.logger.Debug().Err(err).Msg("Invalid stream request")
		return c.JSON(response)
	}

	ranked, err := h.lister.Streams(c.UserContext(), req)
	if err != nil {
		h.logger.Warn().Err(err).Str("media_id", req.ID()).Msg("Stream search failed")
		return c.JSON(response)
	}

	token := c.Params("token")
	for _, sc := range ranked {
		stream := Stream{
			Name:     streamName(sc),
			Title:    streamTitle(sc),
			InfoHash: sc.Candidate.InfoHash,
			FileIdx:  sc.FileIndex,
		}
		if token != "" {
			stream.URL = fmt.Sprintf("%s/%s/play/%s/%s/%s",
				c.BaseURL(), url.PathEscape(token), req.Type, url.PathEscape(req.ID()), sc.Candidate.InfoHash)
		}
		response.Streams = append(response.Streams, stream)
	}

	return c.JSON(response)
}

// Play serves GET /:token/play/:type/:id/:hash with a redirect to the direct link
func (h *StreamHandler) Play(c *fiber.Ctx) error {
	req, err := mediaRequest(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString(noStream)
	}

	hash := strings.ToLower(c.Params("hash"))
	link, err := h.player.Play(c.UserContext(), req, hash, c.Params("token"))
	if err != nil {
		h.logger.Warn().Err(err).Str("media_id", req.ID()).Str("hash", hash).Msg("Play failed")
		return c.Status(fiber.StatusNotFound).SendString(noStream)
	}

	return c.Redirect(link, fiber.StatusFound)
}

func mediaRequest(c *fiber.Ctx) (models.MediaRequest, error) {
	mediaType, err := models.ParseMediaType(c.Params("type"))
	if err != nil {
		return models.MediaRequest{}, err
	}
	id, err := url.PathUnescape(c.Params("id"))
	if err != nil {
		return models.MediaRequest{}, err
	}
	return models.ParseMediaRequest(mediaType, id)
}

func streamName(sc ranker.ScoredCandidate) string {
	name := "gostreamarr"
	if q := sc.Descriptor.Resolution; q != "" && q != models.QualityUnknown {
		name += "\n" + string(q)
	}
	return name
}

func streamTitle(sc ranker.ScoredCandidate) string {
	var b strings.Builder
	b.WriteString(sc.Candidate.Name)
	if sc.FilePath != "" {
		b.WriteString("\n" + sc.FilePath)
	}
	fmt.Fprintf(&b, "\n%d seeders, %s", sc.Candidate.Seeders, humanSize(sc.Candidate.Size))
	if sc.Language != "" {
		b.WriteString(", " + sc.Language)
	}
	return b.String()
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
