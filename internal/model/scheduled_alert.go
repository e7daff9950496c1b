package model

import "time"

// Frequency represents the unit a recurrence interval is counted in
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// RecurrencePattern describes how a ScheduledAlert repeats: every
// Interval units of Frequency, optionally until EndsAt. The pattern is
// immutable once attached to an execution cycle; the scheduler replaces
// the owning alert's copy rather than mutating its fields.
type RecurrencePattern struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
}

// ScheduledAlert is a template for a future alert. It is created by an
// external authoring flow with IsActive=true and mutated only by the
// execution scheduler, which advances ScheduledAt or flips IsActive.
// Records are never physically deleted; completion and expiry are both
// modeled as IsActive=false.
type ScheduledAlert struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	OrganizationID   string             `json:"organization_id"`
	OrganizationName string             `json:"organization_name"`
	GroupID          string             `json:"group_id,omitempty"`
	GroupName        string             `json:"group_name,omitempty"`
	Type             AlertType          `json:"type"`
	Severity         AlertSeverity      `json:"severity"`
	Location         *Location          `json:"location,omitempty"`
	ScheduledAt      time.Time          `json:"scheduled_at"`
	IsRecurring      bool               `json:"is_recurring"`
	Recurrence       *RecurrencePattern `json:"recurrence,omitempty"`
	PosterID         string             `json:"poster_id"`
	PosterName       string             `json:"poster_name"`
	IsActive         bool               `json:"is_active"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
	ImageURLs        []string           `json:"image_urls,omitempty"`
	CalendarEventID  string             `json:"calendar_event_id,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
