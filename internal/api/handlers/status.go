package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RecordCounter counts persisted resolution records
type RecordCounter interface {
	CountByMediaType(ctx context.Context) (map[string]int64, error)
}

// ListCache reports the number of cached ranked lists
type ListCache interface {
	CachedLists() int
}

// StatusHandler handles status requests
type StatusHandler struct {
	records RecordCounter
	lists   ListCache
	logger  zerolog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(records RecordCounter, lists ListCache, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		records: records,
		lists:   lists,
		logger:  logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalRecords  int64            `json:"total_records"`
	RecordsByType map[string]int64 `json:"records_by_type"`
	CachedLists   int              `json:"cached_lists"`
}

// Handle serves the status endpoint
func (h *StatusHandler) Handle(c *fiber.Ctx) error {
	counts, err := h.records.CountByMediaType(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count records")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	response := StatusResponse{RecordsByType: counts}
	for _, n := range counts {
		response.TotalRecords += n
	}
	if h.lists != nil {
		response.CachedLists = h.lists.CachedLists()
	}

	return c.JSON(response)
}
