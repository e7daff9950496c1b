package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertType represents the category of an alert
type AlertType string

const (
	AlertTypeSafety  AlertType = "safety"
	AlertTypeWeather AlertType = "weather"
	AlertTypeTraffic AlertType = "traffic"
	AlertTypeEvent   AlertType = "event"
	AlertTypeGeneral AlertType = "general"
)

// Location is an optional geographic point attached to an alert
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LiveAlert is the durable, user-visible alert record produced by
// executing a ScheduledAlert. It is written exactly once per execution
// and never mutated afterwards.
type LiveAlert struct {
	ID               string        `json:"id"`
	OrganizationID   string        `json:"organization_id"`
	OrganizationName string        `json:"organization_name"`
	GroupID          string        `json:"group_id,omitempty"`
	GroupName        string        `json:"group_name,omitempty"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Type             AlertType     `json:"type"`
	Severity         AlertSeverity `json:"severity"`
	Location         *Location     `json:"location,omitempty"`
	PosterID         string        `json:"poster_id"`
	PosterName       string        `json:"poster_name"`
	PostedAt         time.Time     `json:"posted_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	Active           bool          `json:"active"`
	ImageURLs        []string      `json:"image_urls,omitempty"`
}
