package model

// Organization owns alerts and carries the running count of alerts
// published under it. The count is maintained with an atomic store-side
// increment and may drift behind the live_alerts table; a reconciliation
// sweep corrects it outside the publish critical path.
type Organization struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AlertCount int64  `json:"alert_count"`
}

// Follower is a membership edge between a recipient and an organization.
// GroupPreferences lists the group IDs the follower opted into; an empty
// list means the follower receives organization-wide alerts only.
type Follower struct {
	OrganizationID   string   `json:"organization_id"`
	RecipientID      string   `json:"recipient_id"`
	Active           bool     `json:"active"`
	GroupPreferences []string `json:"group_preferences,omitempty"`
}

// Recipient is the delivery address book entry for one user. Either
// field may be empty; a gateway with no address to use reports the
// delivery as skipped rather than failed.
type Recipient struct {
	ID        string `json:"id"`
	PushToken string `json:"push_token,omitempty"`
	Email     string `json:"email,omitempty"`
}
