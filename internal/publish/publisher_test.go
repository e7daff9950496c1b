package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
	"github.com/beaconhq/alert-pipeline/internal/notify"
)

type fakeLiveAlertStore struct {
	err     error
	created []*model.LiveAlert
}

func (f *fakeLiveAlertStore) CreateLiveAlert(ctx context.Context, alert *model.LiveAlert) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, alert)
	return nil
}

func (f *fakeLiveAlertStore) LiveAlertsByOrganization(ctx context.Context, orgID string) ([]*model.LiveAlert, error) {
	return f.created, nil
}

type fakeOrgStore struct {
	err        error
	increments int64
}

func (f *fakeOrgStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	return nil
}

func (f *fakeOrgStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	return nil, nil
}

func (f *fakeOrgStore) IncrementAlertCount(ctx context.Context, orgID string, delta int64) error {
	if f.err != nil {
		return f.err
	}
	f.increments += delta
	return nil
}

type fakeResolver struct {
	recipients []string
	err        error
}

func (f *fakeResolver) EligibleRecipients(ctx context.Context, orgID, posterID, groupID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recipients, nil
}

type fakeFanout struct {
	dispatched [][]string
}

func (f *fakeFanout) Dispatch(ctx context.Context, recipients []string, alert *model.LiveAlert) []notify.Outcome {
	f.dispatched = append(f.dispatched, recipients)
	return nil
}

func scheduledFixture() *model.ScheduledAlert {
	return &model.ScheduledAlert{
		ID:               "sched-1",
		Title:            "Road closure",
		Description:      "Main street closed",
		OrganizationID:   "org-1",
		OrganizationName: "City Works",
		GroupID:          "group-7",
		GroupName:        "North District",
		Type:             model.AlertTypeTraffic,
		Severity:         model.AlertSeverityWarning,
		Location:         &model.Location{Latitude: 40.7, Longitude: -74.0},
		ScheduledAt:      time.Now().UTC().Add(-time.Minute),
		PosterID:         "user-1",
		PosterName:       "Dana",
		IsActive:         true,
		ImageURLs:        []string{"https://img.example.com/a.png"},
	}
}

func TestPublisher_PublishSnapshotsScheduledAlert(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	alerts := &fakeLiveAlertStore{}
	orgs := &fakeOrgStore{}
	fanout := &fakeFanout{}

	p := NewPublisher(alerts, orgs, &fakeResolver{recipients: []string{"a", "b"}}, fanout, logger)

	scheduled := scheduledFixture()
	live, err := p.Publish(context.Background(), scheduled)
	require.NoError(t, err)
	require.NotNil(t, live)

	require.NotEmpty(t, live.ID)
	require.NotEqual(t, scheduled.ID, live.ID)
	require.Equal(t, scheduled.Title, live.Title)
	require.Equal(t, scheduled.Description, live.Description)
	require.Equal(t, scheduled.OrganizationID, live.OrganizationID)
	require.Equal(t, scheduled.GroupID, live.GroupID)
	require.Equal(t, scheduled.Type, live.Type)
	require.Equal(t, scheduled.Severity, live.Severity)
	require.Equal(t, scheduled.Location, live.Location)
	require.Equal(t, scheduled.PosterID, live.PosterID)
	require.Equal(t, scheduled.ImageURLs, live.ImageURLs)
	require.True(t, live.Active)
	require.False(t, live.PostedAt.IsZero())
	require.Equal(t, live.PostedAt.Add(14*24*time.Hour), live.ExpiresAt)

	require.Len(t, alerts.created, 1)
	require.Equal(t, int64(1), orgs.increments)
	require.Len(t, fanout.dispatched, 1)
	require.Equal(t, []string{"a", "b"}, fanout.dispatched[0])
}

func TestPublisher_PrimaryWriteFailureAbortsFanOut(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	alerts := &fakeLiveAlertStore{err: errors.New("disk full")}
	orgs := &fakeOrgStore{}
	fanout := &fakeFanout{}

	p := NewPublisher(alerts, orgs, &fakeResolver{recipients: []string{"a"}}, fanout, logger)

	_, err := p.Publish(context.Background(), scheduledFixture())
	require.ErrorIs(t, err, ErrPersistence)

	require.Zero(t, orgs.increments)
	require.Empty(t, fanout.dispatched)
}

func TestPublisher_CounterDriftIsTolerated(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	alerts := &fakeLiveAlertStore{}
	orgs := &fakeOrgStore{err: errors.New("counter unavailable")}
	fanout := &fakeFanout{}

	p := NewPublisher(alerts, orgs, &fakeResolver{recipients: []string{"a"}}, fanout, logger)

	// The alert stays visible and fan-out still runs when only the
	// counter increment fails.
	live, err := p.Publish(context.Background(), scheduledFixture())
	require.NoError(t, err)
	require.NotNil(t, live)
	require.Len(t, alerts.created, 1)
	require.Len(t, fanout.dispatched, 1)
}

func TestPublisher_ResolverFailureSkipsFanOut(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	alerts := &fakeLiveAlertStore{}
	fanout := &fakeFanout{}

	p := NewPublisher(alerts, &fakeOrgStore{}, &fakeResolver{err: errors.New("followers unavailable")}, fanout, logger)

	live, err := p.Publish(context.Background(), scheduledFixture())
	require.NoError(t, err)
	require.NotNil(t, live)
	require.Empty(t, fanout.dispatched)
}

func TestPublisher_NoRecipientsSkipsDispatch(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	fanout := &fakeFanout{}

	p := NewPublisher(&fakeLiveAlertStore{}, &fakeOrgStore{}, &fakeResolver{}, fanout, logger)

	_, err := p.Publish(context.Background(), scheduledFixture())
	require.NoError(t, err)
	require.Empty(t, fanout.dispatched)
}
