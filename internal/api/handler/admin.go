package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/api/models"
	"github.com/cuogn/logistics-front-sub000/internal/api/response"
)

// CacheClearer empties every cache behind the quote service.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	caches CacheClearer
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(caches CacheClearer, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		caches: caches,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// ClearCache handles POST /v1/admin/cache:clear.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.caches.ClearCache(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("cache clear failed")
		response.ServiceUnavailable(w, r, "cache clear failed")
		return
	}
	response.JSON(w, r, http.StatusOK, models.CacheClearResponse{
		ClearedAt: models.Timestamp(time.Now()),
	})
}
