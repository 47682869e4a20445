package client

import "time"

// HealthResponse mirrors GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	TotalStreams  int    `json:"total_streams"`
	ActiveStreams int    `json:"active_streams"`
}

// FeedStatus mirrors one element of GET /api/feeds.
type FeedStatus struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Restarts  int       `json:"restarts"`
	LastError string    `json:"last_error,omitempty"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
