package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuogn/logistics-front-sub000/internal/api/middleware"
	"github.com/cuogn/logistics-front-sub000/internal/api/models"
	"github.com/cuogn/logistics-front-sub000/internal/quote"
	"github.com/cuogn/logistics-front-sub000/internal/routing"
	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

type stubQuotes struct {
	result quote.Result
	err    error
	seen   quote.Request
}

func (s *stubQuotes) ResolveRoute(_ context.Context, req quote.Request) (quote.Result, error) {
	s.seen = req
	return s.result, s.err
}

func TestQuoteHandler_AnnotatesAccessLog(t *testing.T) {
	stub := &stubQuotes{result: quote.Result{
		Route: routing.Route{
			DistanceMeters: 1520,
			Geometry:       []geo.Point{{Lat: 21.0, Lng: 105.8}, {Lat: 21.1, Lng: 105.9}},
			Source:         routing.SourceProviderRetry,
			Provider:       "here",
		},
		Origin:      quote.ResolvedLocation{Method: quote.MethodCoordinates},
		Destination: quote.ResolvedLocation{Method: quote.MethodProvinceCentroid},
	}}
	h := NewQuoteHandler(stub, false, zerolog.New(io.Discard))

	var buf bytes.Buffer
	handler := middleware.RequestID(middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(h.ComputeQuote)))

	body := `{"origin":{"point":{"lat":21.0,"lng":105.8}},"destination":{"provinceCode":"31"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/quotes:compute", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "provider_retry", entry[middleware.RouteSourceAnnotation])
	assert.Equal(t, "here", entry["route_provider"])
	assert.Equal(t, "coordinates", entry["origin_method"])
	assert.Equal(t, "province_centroid", entry["destination_method"])
}

func TestQuoteHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "validation error",
			err:        &quote.ValidationError{Field: "ratePerKm", Message: "must be a non-negative number"},
			wantStatus: http.StatusBadRequest,
			wantType:   models.ProblemTypeValidation,
		},
		{
			name:       "unresolved location",
			err:        &quote.UnresolvedError{Field: "destination"},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   models.ProblemTypeUnresolved,
		},
		{
			name:       "unexpected failure",
			err:        errors.New("resolving route: boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   models.ProblemTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewQuoteHandler(&stubQuotes{err: tt.err}, false, zerolog.New(io.Discard))

			body := `{"origin":{"point":{"lat":21.0,"lng":105.8}},"destination":{"point":{"lat":21.1,"lng":105.9}}}`
			req := httptest.NewRequest(http.MethodPost, "/v1/quotes:compute", bytes.NewBufferString(body))
			w := httptest.NewRecorder()

			h.ComputeQuote(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var problem models.Problem
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantType, problem.Type)
		})
	}
}

func TestQuoteHandler_MapsRequest(t *testing.T) {
	stub := &stubQuotes{err: errors.New("stop")}
	h := NewQuoteHandler(stub, false, zerolog.New(io.Discard))

	body := `{"origin":{"address":"12 Tràng Tiền","wardCode":"00070","provinceCode":"01"},` +
		`"destination":{"point":{"lat":10.77,"lng":106.7}},"ratePerKm":7000}`
	req := httptest.NewRequest(http.MethodPost, "/v1/quotes:compute", bytes.NewBufferString(body))
	h.ComputeQuote(httptest.NewRecorder(), req)

	require.NotNil(t, stub.seen.Origin)
	assert.Nil(t, stub.seen.Origin.Point)
	assert.Equal(t, "12 Tràng Tiền", stub.seen.Origin.Address)
	assert.Equal(t, "00070", stub.seen.Origin.WardCode)
	assert.Equal(t, "01", stub.seen.Origin.ProvinceCode)

	require.NotNil(t, stub.seen.Destination.Point)
	assert.InDelta(t, 10.77, stub.seen.Destination.Point.Lat, 1e-9)
	require.NotNil(t, stub.seen.RatePerKm)
	assert.Equal(t, 7000.0, *stub.seen.RatePerKm)
}

func TestValidateBody_FieldPaths(t *testing.T) {
	errs := validateBody(&models.QuoteComputeRequest{
		Origin: &models.Location{Point: &models.Point{}},
	})

	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, "REQUIRED", fields["destination"])
	assert.Equal(t, "REQUIRED", fields["origin.point.lat"])
	assert.Equal(t, "REQUIRED", fields["origin.point.lng"])
}
