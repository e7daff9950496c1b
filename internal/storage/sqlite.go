package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

// SQLite implements all pipeline stores on a single SQLite database.
type SQLite struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLite opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLite(logger *zap.Logger, dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLite{
		logger: logger,
		db:     db,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLite) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_alerts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			organization_name TEXT NOT NULL,
			group_id TEXT,
			group_name TEXT,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			scheduled_at DATETIME NOT NULL,
			is_recurring INTEGER NOT NULL DEFAULT 0,
			frequency TEXT,
			interval INTEGER,
			recurrence_ends_at DATETIME,
			poster_id TEXT NOT NULL,
			poster_name TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			expires_at DATETIME,
			image_urls TEXT,
			calendar_event_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scheduled_alerts_due ON scheduled_alerts(is_active, scheduled_at);
		CREATE INDEX IF NOT EXISTS idx_scheduled_alerts_org ON scheduled_alerts(organization_id);

		CREATE TABLE IF NOT EXISTS live_alerts (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			organization_name TEXT NOT NULL,
			group_id TEXT,
			group_name TEXT,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			poster_id TEXT NOT NULL,
			poster_name TEXT NOT NULL,
			posted_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			image_urls TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_live_alerts_org ON live_alerts(organization_id, posted_at);

		CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			alert_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS followers (
			organization_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			group_preferences TEXT,
			PRIMARY KEY (organization_id, recipient_id)
		);
		CREATE INDEX IF NOT EXISTS idx_followers_org ON followers(organization_id, active);

		CREATE TABLE IF NOT EXISTS recipients (
			id TEXT PRIMARY KEY,
			push_token TEXT,
			email TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// CreateScheduledAlert implements ScheduledAlertStore.CreateScheduledAlert
func (s *SQLite) CreateScheduledAlert(ctx context.Context, alert *model.ScheduledAlert) error {
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	alert.UpdatedAt = now

	var lat, lon sql.NullFloat64
	if alert.Location != nil {
		lat = sql.NullFloat64{Float64: alert.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: alert.Location.Longitude, Valid: true}
	}

	var frequency sql.NullString
	var interval sql.NullInt64
	var endsAt sql.NullTime
	if alert.Recurrence != nil {
		frequency = sql.NullString{String: string(alert.Recurrence.Frequency), Valid: true}
		interval = sql.NullInt64{Int64: int64(alert.Recurrence.Interval), Valid: true}
		if alert.Recurrence.EndsAt != nil {
			endsAt = sql.NullTime{Time: *alert.Recurrence.EndsAt, Valid: true}
		}
	}

	var expiresAt sql.NullTime
	if alert.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *alert.ExpiresAt, Valid: true}
	}

	images, err := marshalStrings(alert.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to encode image urls: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_alerts (
			id, title, description, organization_id, organization_name,
			group_id, group_name, alert_type, severity, latitude, longitude,
			scheduled_at, is_recurring, frequency, interval, recurrence_ends_at,
			poster_id, poster_name, is_active, expires_at, image_urls,
			calendar_event_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.Title,
		alert.Description,
		alert.OrganizationID,
		alert.OrganizationName,
		nullString(alert.GroupID),
		nullString(alert.GroupName),
		string(alert.Type),
		string(alert.Severity),
		lat,
		lon,
		alert.ScheduledAt,
		alert.IsRecurring,
		frequency,
		interval,
		endsAt,
		alert.PosterID,
		alert.PosterName,
		alert.IsActive,
		expiresAt,
		images,
		nullString(alert.CalendarEventID),
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store scheduled alert: %w", err)
	}
	return nil
}

const scheduledAlertColumns = `
	id, title, description, organization_id, organization_name,
	group_id, group_name, alert_type, severity, latitude, longitude,
	scheduled_at, is_recurring, frequency, interval, recurrence_ends_at,
	poster_id, poster_name, is_active, expires_at, image_urls,
	calendar_event_id, created_at, updated_at`

// GetScheduledAlert implements ScheduledAlertStore.GetScheduledAlert
func (s *SQLite) GetScheduledAlert(ctx context.Context, id string) (*model.ScheduledAlert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+scheduledAlertColumns+`
		FROM scheduled_alerts
		WHERE id = ?`, id)

	alert, err := scanScheduledAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan scheduled alert: %w", err)
	}
	return alert, nil
}

// DueScheduledAlerts implements ScheduledAlertStore.DueScheduledAlerts
func (s *SQLite) DueScheduledAlerts(ctx context.Context, now time.Time) ([]*model.ScheduledAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduledAlertColumns+`
		FROM scheduled_alerts
		WHERE is_active = 1 AND scheduled_at <= ?
		ORDER BY scheduled_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due alerts: %w", err)
	}
	defer rows.Close()

	return collectScheduledAlerts(rows)
}

// ExpiredScheduledAlerts implements ScheduledAlertStore.ExpiredScheduledAlerts
func (s *SQLite) ExpiredScheduledAlerts(ctx context.Context, now time.Time) ([]*model.ScheduledAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduledAlertColumns+`
		FROM scheduled_alerts
		WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at < ?
		ORDER BY expires_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired alerts: %w", err)
	}
	defer rows.Close()

	return collectScheduledAlerts(rows)
}

// AdvanceSchedule implements ScheduledAlertStore.AdvanceSchedule
func (s *SQLite) AdvanceSchedule(ctx context.Context, id string, next time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_alerts
		SET scheduled_at = ?, updated_at = ?
		WHERE id = ?`, next, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to advance schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateScheduledAlert implements ScheduledAlertStore.DeactivateScheduledAlert
func (s *SQLite) DeactivateScheduledAlert(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_alerts
		SET is_active = 0, updated_at = ?
		WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate scheduled alert: %w", err)
	}
	return nil
}

// CreateLiveAlert implements LiveAlertStore.CreateLiveAlert
func (s *SQLite) CreateLiveAlert(ctx context.Context, alert *model.LiveAlert) error {
	var lat, lon sql.NullFloat64
	if alert.Location != nil {
		lat = sql.NullFloat64{Float64: alert.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: alert.Location.Longitude, Valid: true}
	}

	images, err := marshalStrings(alert.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to encode image urls: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO live_alerts (
			id, organization_id, organization_name, group_id, group_name,
			title, description, alert_type, severity, latitude, longitude,
			poster_id, poster_name, posted_at, expires_at, active, image_urls
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.OrganizationID,
		alert.OrganizationName,
		nullString(alert.GroupID),
		nullString(alert.GroupName),
		alert.Title,
		alert.Description,
		string(alert.Type),
		string(alert.Severity),
		lat,
		lon,
		alert.PosterID,
		alert.PosterName,
		alert.PostedAt,
		alert.ExpiresAt,
		alert.Active,
		images,
	)
	if err != nil {
		return fmt.Errorf("failed to store live alert: %w", err)
	}
	return nil
}

// LiveAlertsByOrganization implements LiveAlertStore.LiveAlertsByOrganization
func (s *SQLite) LiveAlertsByOrganization(ctx context.Context, orgID string) ([]*model.LiveAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id, organization_id, organization_name, group_id, group_name,
			title, description, alert_type, severity, latitude, longitude,
			poster_id, poster_name, posted_at, expires_at, active, image_urls
		FROM live_alerts
		WHERE organization_id = ?
		ORDER BY posted_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query live alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*model.LiveAlert
	for rows.Next() {
		alert := &model.LiveAlert{}
		var groupID, groupName, images sql.NullString
		var lat, lon sql.NullFloat64
		var alertType, severity string

		err := rows.Scan(
			&alert.ID,
			&alert.OrganizationID,
			&alert.OrganizationName,
			&groupID,
			&groupName,
			&alert.Title,
			&alert.Description,
			&alertType,
			&severity,
			&lat,
			&lon,
			&alert.PosterID,
			&alert.PosterName,
			&alert.PostedAt,
			&alert.ExpiresAt,
			&alert.Active,
			&images,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan live alert: %w", err)
		}

		alert.Type = model.AlertType(alertType)
		alert.Severity = model.AlertSeverity(severity)
		alert.GroupID = groupID.String
		alert.GroupName = groupName.String
		if lat.Valid && lon.Valid {
			alert.Location = &model.Location{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		if alert.ImageURLs, err = unmarshalStrings(images); err != nil {
			return nil, fmt.Errorf("failed to decode image urls: %w", err)
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return alerts, nil
}

// CreateOrganization implements OrganizationStore.CreateOrganization
func (s *SQLite) CreateOrganization(ctx context.Context, org *model.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, alert_count) VALUES (?, ?, ?)`,
		org.ID, org.Name, org.AlertCount)
	if err != nil {
		return fmt.Errorf("failed to store organization: %w", err)
	}
	return nil
}

// GetOrganization implements OrganizationStore.GetOrganization
func (s *SQLite) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	org := &model.Organization{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, alert_count FROM organizations WHERE id = ?`, id).
		Scan(&org.ID, &org.Name, &org.AlertCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	return org, nil
}

// IncrementAlertCount implements OrganizationStore.IncrementAlertCount.
// The increment happens store-side in a single statement so concurrent
// publishes to the same organization stay correct.
func (s *SQLite) IncrementAlertCount(ctx context.Context, orgID string, delta int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET alert_count = alert_count + ? WHERE id = ?`,
		delta, orgID)
	if err != nil {
		return fmt.Errorf("failed to increment alert count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertFollower implements FollowerStore.UpsertFollower
func (s *SQLite) UpsertFollower(ctx context.Context, f *model.Follower) error {
	prefs, err := marshalStrings(f.GroupPreferences)
	if err != nil {
		return fmt.Errorf("failed to encode group preferences: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO followers (organization_id, recipient_id, active, group_preferences)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (organization_id, recipient_id)
		DO UPDATE SET active = excluded.active, group_preferences = excluded.group_preferences`,
		f.OrganizationID, f.RecipientID, f.Active, prefs)
	if err != nil {
		return fmt.Errorf("failed to store follower: %w", err)
	}
	return nil
}

// ActiveFollowers implements FollowerStore.ActiveFollowers
func (s *SQLite) ActiveFollowers(ctx context.Context, orgID string) ([]*model.Follower, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT organization_id, recipient_id, active, group_preferences
		FROM followers
		WHERE organization_id = ? AND active = 1`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query followers: %w", err)
	}
	defer rows.Close()

	var followers []*model.Follower
	for rows.Next() {
		f := &model.Follower{}
		var prefs sql.NullString
		if err := rows.Scan(&f.OrganizationID, &f.RecipientID, &f.Active, &prefs); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		if f.GroupPreferences, err = unmarshalStrings(prefs); err != nil {
			return nil, fmt.Errorf("failed to decode group preferences: %w", err)
		}
		followers = append(followers, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return followers, nil
}

// UpsertRecipient implements RecipientStore.UpsertRecipient
func (s *SQLite) UpsertRecipient(ctx context.Context, r *model.Recipient) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipients (id, push_token, email)
		VALUES (?, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET push_token = excluded.push_token, email = excluded.email`,
		r.ID, nullString(r.PushToken), nullString(r.Email))
	if err != nil {
		return fmt.Errorf("failed to store recipient: %w", err)
	}
	return nil
}

// PushToken implements RecipientStore.PushToken
func (s *SQLite) PushToken(ctx context.Context, recipientID string) (string, error) {
	var token sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT push_token FROM recipients WHERE id = ?`, recipientID).Scan(&token)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to scan push token: %w", err)
	}
	return token.String, nil
}

// EmailAddress implements RecipientStore.EmailAddress
func (s *SQLite) EmailAddress(ctx context.Context, recipientID string) (string, error) {
	var email sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT email FROM recipients WHERE id = ?`, recipientID).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to scan email address: %w", err)
	}
	return email.String, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanScheduledAlert(row scanner) (*model.ScheduledAlert, error) {
	alert := &model.ScheduledAlert{}
	var groupID, groupName, frequency, images, calendarEventID sql.NullString
	var lat, lon sql.NullFloat64
	var interval sql.NullInt64
	var recurrenceEndsAt, expiresAt sql.NullTime
	var alertType, severity string

	err := row.Scan(
		&alert.ID,
		&alert.Title,
		&alert.Description,
		&alert.OrganizationID,
		&alert.OrganizationName,
		&groupID,
		&groupName,
		&alertType,
		&severity,
		&lat,
		&lon,
		&alert.ScheduledAt,
		&alert.IsRecurring,
		&frequency,
		&interval,
		&recurrenceEndsAt,
		&alert.PosterID,
		&alert.PosterName,
		&alert.IsActive,
		&expiresAt,
		&images,
		&calendarEventID,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Type = model.AlertType(alertType)
	alert.Severity = model.AlertSeverity(severity)
	alert.GroupID = groupID.String
	alert.GroupName = groupName.String
	alert.CalendarEventID = calendarEventID.String
	if lat.Valid && lon.Valid {
		alert.Location = &model.Location{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	if frequency.Valid {
		pattern := &model.RecurrencePattern{
			Frequency: model.Frequency(frequency.String),
			Interval:  int(interval.Int64),
		}
		if recurrenceEndsAt.Valid {
			t := recurrenceEndsAt.Time
			pattern.EndsAt = &t
		}
		alert.Recurrence = pattern
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		alert.ExpiresAt = &t
	}
	if alert.ImageURLs, err = unmarshalStrings(images); err != nil {
		return nil, err
	}

	return alert, nil
}

func collectScheduledAlerts(rows *sql.Rows) ([]*model.ScheduledAlert, error) {
	var alerts []*model.ScheduledAlert
	for rows.Next() {
		alert, err := scanScheduledAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return alerts, nil
}

func marshalStrings(values []string) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalStrings(value sql.NullString) ([]string, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(value.String), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
