package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cuogn/logistics-front-sub000/internal/api/models"
	"github.com/cuogn/logistics-front-sub000/internal/api/response"
	"github.com/cuogn/logistics-front-sub000/internal/reference"
)

// ReferenceLister lists administrative units.
type ReferenceLister interface {
	ListProvinces(ctx context.Context) []reference.AdministrativeUnit
	ListWards(ctx context.Context, provinceCode string) []reference.AdministrativeUnit
}

// ReferenceHandler handles reference data endpoints.
type ReferenceHandler struct {
	units ReferenceLister
}

// NewReferenceHandler creates a new ReferenceHandler.
func NewReferenceHandler(units ReferenceLister) *ReferenceHandler {
	return &ReferenceHandler{units: units}
}

// ListProvinces handles GET /v1/reference/provinces.
func (h *ReferenceHandler) ListProvinces(w http.ResponseWriter, r *http.Request) {
	units := h.units.ListProvinces(r.Context())
	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, toUnitList(units))
}

// ListWards handles GET /v1/reference/provinces/{provinceCode}/wards. An
// unknown province yields the built-in fallback wards, never an error.
func (h *ReferenceHandler) ListWards(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "provinceCode"))
	if code == "" {
		response.BadRequest(w, r, "province code is required", []models.FieldError{
			{Field: "provinceCode", Message: "is required"},
		})
		return
	}
	units := h.units.ListWards(r.Context(), code)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, toUnitList(units))
}

func toUnitList(units []reference.AdministrativeUnit) models.AdministrativeUnitList {
	items := make([]models.AdministrativeUnit, 0, len(units))
	for _, u := range units {
		item := models.AdministrativeUnit{
			Code:         u.Code,
			Name:         u.Name,
			NameWithType: u.NameWithType,
			ParentCode:   u.ParentCode,
			Type:         u.Type,
			Slug:         u.Slug,
			Path:         u.Path,
		}
		if u.Centroid != nil {
			item.Centroid = &models.QuotePoint{Lat: u.Centroid.Lat, Lng: u.Centroid.Lng}
		}
		items = append(items, item)
	}
	return models.AdministrativeUnitList{Items: items, Count: len(items)}
}
