package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuogn/logistics-front-sub000/internal/api/middleware"
	"github.com/cuogn/logistics-front-sub000/internal/api/models"
	"github.com/cuogn/logistics-front-sub000/internal/api/response"
	"github.com/cuogn/logistics-front-sub000/internal/quote"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

const maxQuoteBodyBytes = 64 << 10

// QuoteResolver computes a delivery quote.
type QuoteResolver interface {
	ResolveRoute(ctx context.Context, req quote.Request) (quote.Result, error)
}

// QuoteHandler handles quote endpoints.
type QuoteHandler struct {
	quotes       QuoteResolver
	withGeometry bool
	logger       zerolog.Logger
}

// NewQuoteHandler creates a new QuoteHandler. When withGeometry is set the
// decoded route points are returned alongside the encoded polyline.
func NewQuoteHandler(quotes QuoteResolver, withGeometry bool, logger zerolog.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes:       quotes,
		withGeometry: withGeometry,
		logger:       logger.With().Str("handler", "quote").Logger(),
	}
}

// ComputeQuote handles POST /v1/quotes:compute - resolve a route and price it.
func (h *QuoteHandler) ComputeQuote(w http.ResponseWriter, r *http.Request) {
	var input models.QuoteComputeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuoteBodyBytes))
	if err := dec.Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := validateBody(&input); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	result, err := h.quotes.ResolveRoute(r.Context(), toQuoteRequest(input))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	annotateQuote(r.Context(), result)

	resp := models.QuoteComputeResponse{
		GeneratedAt: models.Timestamp(time.Now()),
		Origin:      toResolvedLocation(result.Origin),
		Destination: toResolvedLocation(result.Destination),
		Route: models.Route{
			DistanceMeters:  result.Route.DistanceMeters,
			DurationSeconds: result.Route.DurationSeconds,
			Source:          string(result.Route.Source),
			Provider:        result.Route.Provider,
			Polyline:        result.Route.EncodedPolyline(),
		},
		Price: models.Price{
			Amount:    result.Quote.Amount,
			Currency:  result.Quote.Currency,
			RatePerKm: result.Quote.RatePerKm,
		},
		Warnings: result.Warnings,
	}
	if h.withGeometry {
		resp.Route.Geometry = toQuotePoints(result.Route.Geometry)
	}

	w.Header().Set("Cache-Control", "no-store")
	response.JSON(w, r, http.StatusOK, resp)
}

// annotateQuote records how the quote was resolved on the access log, the
// request span and the request metrics.
func annotateQuote(ctx context.Context, result quote.Result) {
	middleware.Annotate(ctx, middleware.RouteSourceAnnotation, string(result.Route.Source))
	if result.Route.Provider != "" {
		middleware.Annotate(ctx, "route_provider", result.Route.Provider)
	}
	middleware.Annotate(ctx, "origin_method", string(result.Origin.Method))
	middleware.Annotate(ctx, "destination_method", string(result.Destination.Method))
}

func (h *QuoteHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *quote.ValidationError
	var uerr *quote.UnresolvedError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(w, r, "request validation failed", []models.FieldError{
			{Field: verr.Field, Message: verr.Message},
		})
	case errors.Is(err, quote.ErrInvalidRequest):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.As(err, &uerr):
		response.Unprocessable(w, r, err.Error(), []models.FieldError{
			{Field: uerr.Field, Message: quote.ErrLocationUnresolved.Error(), Code: "UNRESOLVED"},
		})
	case errors.Is(err, quote.ErrLocationUnresolved):
		response.Unprocessable(w, r, err.Error(), nil)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
		h.logger.Debug().Err(err).Msg("quote request cancelled")
	default:
		h.logger.Error().Err(err).Msg("quote computation failed")
		response.InternalError(w, r, "failed to compute quote")
	}
}

func toQuoteRequest(in models.QuoteComputeRequest) quote.Request {
	return quote.Request{
		Origin:      toQuoteLocation(in.Origin),
		Destination: toQuoteLocation(in.Destination),
		RatePerKm:   in.RatePerKm,
	}
}

func toQuoteLocation(in *models.Location) *quote.Location {
	if in == nil {
		return nil
	}
	loc := &quote.Location{
		Address:      in.Address,
		WardCode:     in.WardCode,
		ProvinceCode: in.ProvinceCode,
	}
	if in.Point != nil && in.Point.Lat != nil && in.Point.Lng != nil {
		loc.Point = &geo.Point{Lat: *in.Point.Lat, Lng: *in.Point.Lng}
	}
	return loc
}

func toResolvedLocation(in quote.ResolvedLocation) models.ResolvedLocation {
	return models.ResolvedLocation{
		Point:  models.QuotePoint{Lat: in.Point.Lat, Lng: in.Point.Lng},
		Label:  in.Label,
		Method: string(in.Method),
	}
}

func toQuotePoints(points []geo.Point) []models.QuotePoint {
	out := make([]models.QuotePoint, len(points))
	for i, p := range points {
		out[i] = models.QuotePoint{Lat: p.Lat, Lng: p.Lng}
	}
	return out
}
