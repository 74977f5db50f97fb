package here

// routingResponse is the HERE routing v8 response body.
type routingResponse struct {
	Routes        []hereRoute    `json:"routes"`
	Notices       []notice       `json:"notices,omitempty"`
	Title         string         `json:"title,omitempty"`
	Status        int            `json:"status,omitempty"`
	Cause         string         `json:"cause,omitempty"`
	Action        string         `json:"action,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	ErrorDetails  map[string]any `json:"errorDetails,omitempty"`
}

type hereRoute struct {
	ID       string        `json:"id"`
	Sections []hereSection `json:"sections"`
}

type hereSection struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Departure herePlace    `json:"departure"`
	Arrival   herePlace    `json:"arrival"`
	Summary   *hereSummary `json:"summary,omitempty"`
	Polyline  string       `json:"polyline"`
}

type herePlace struct {
	Time  string       `json:"time"`
	Place hereWaypoint `json:"place"`
}

type hereWaypoint struct {
	Type     string       `json:"type"`
	Location herePosition `json:"location"`
}

type herePosition struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type hereSummary struct {
	Duration     float64 `json:"duration"`
	Length       float64 `json:"length"`
	BaseDuration float64 `json:"baseDuration"`
}

type notice struct {
	Title    string `json:"title"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
}

// errorResponse is the error body HERE returns with non-2xx statuses.
type errorResponse struct {
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Code          string `json:"code"`
	Cause         string `json:"cause"`
	Action        string `json:"action"`
	CorrelationID string `json:"correlationId"`
	Error         string `json:"error"`
	Description   string `json:"error_description"`
}

func (e errorResponse) message() string {
	switch {
	case e.Title != "":
		return e.Title
	case e.Description != "":
		return e.Description
	default:
		return e.Error
	}
}
