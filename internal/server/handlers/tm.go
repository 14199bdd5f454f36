package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/tmimport"
	"github.com/iudanet/tmmerge/pkg/api"
)

// TMImporter импортирует translation memory
type TMImporter interface {
	Import(ctx context.Context, userID, tmSlug, description string, units []*models.TransMemoryUnit) (*tmimport.Result, error)
}

// TMHandler обрабатывает импорт translation memory
type TMHandler struct {
	responder
	importer TMImporter
}

// NewTMHandler создает handler импорта TM
func NewTMHandler(logger *slog.Logger, importer TMImporter) *TMHandler {
	return &TMHandler{
		responder: responder{logger: logger},
		importer:  importer,
	}
}

// Import обрабатывает PUT /api/v1/tm/{slug}
// Повторный импорт обновляет единицы с тем же unique_id
func (h *TMHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req api.ImportTMRequest
	if !h.decode(w, r, &req) {
		return
	}

	units := make([]*models.TransMemoryUnit, 0, len(req.Units))
	for _, u := range req.Units {
		units = append(units, &models.TransMemoryUnit{
			UniqueID:     u.UniqueID,
			SourceLocale: u.SourceLocale,
			Context:      u.Context,
			Variants:     u.Variants,
		})
	}

	res, err := h.importer.Import(r.Context(), userID, chi.URLParam(r, "slug"), req.Description, units)
	if err != nil {
		h.sendServiceError(w, r, "import translation memory", err)
		return
	}
	h.sendJSON(w, api.ImportTMResponse{Slug: res.Memory.Slug, Units: res.Units}, http.StatusOK)
}
