package middleware

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/cuogn/logistics-front-sub000/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers and problem responses may replace it.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON answers 415 when a request declares a body type other than
// JSON. A missing Content-Type is accepted; the JSON decoder reports bodies
// that do not parse.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" && !isJSON(ct) {
			problem := models.NewProblem(
				models.ProblemTypeUnsupportedMedia,
				"Unsupported media type",
				http.StatusUnsupportedMediaType,
				GetRequestID(r.Context()),
			)
			problem.Detail = fmt.Sprintf("Content-Type %q is not accepted, send application/json", ct)
			problem.Instance = r.URL.Path
			problem.Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isJSON accepts application/json and structured +json types, with any
// parameters.
func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
