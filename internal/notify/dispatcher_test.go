package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

// fakeGateway delivers to recipients it has an address for, fails the
// ones in fail, and reports ErrNoAddress for everyone else.
type fakeGateway struct {
	name      string
	addresses map[string]bool
	fail      map[string]error

	mu   sync.Mutex
	sent []string
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) Send(ctx context.Context, recipientID string, alert *model.LiveAlert) error {
	if !g.addresses[recipientID] {
		return ErrNoAddress
	}
	if err := g.fail[recipientID]; err != nil {
		return err
	}
	g.mu.Lock()
	g.sent = append(g.sent, recipientID)
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) delivered() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sent...)
}

func testAlert() *model.LiveAlert {
	return &model.LiveAlert{
		ID:               "live-1",
		OrganizationID:   "org-1",
		OrganizationName: "City Works",
		Title:            "Road closure",
		Description:      "Main street closed",
		Severity:         model.AlertSeverityWarning,
		PostedAt:         time.Now().UTC(),
	}
}

func outcomesByStatus(outcomes []Outcome) map[DeliveryStatus]int {
	counts := make(map[DeliveryStatus]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}

func TestDispatcher_DeliversToAll(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	push := &fakeGateway{name: "push", addresses: map[string]bool{"a": true, "b": true, "c": true}}

	d := NewDispatcher([]Gateway{push}, 4, logger)
	outcomes := d.Dispatch(context.Background(), []string{"a", "b", "c"}, testAlert())

	require.Len(t, outcomes, 3)
	require.Equal(t, 3, outcomesByStatus(outcomes)[StatusDelivered])
	require.ElementsMatch(t, []string{"a", "b", "c"}, push.delivered())
}

func TestDispatcher_FailuresDoNotShortCircuit(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	push := &fakeGateway{
		name:      "push",
		addresses: map[string]bool{"a": true, "b": true, "c": true, "d": true},
		fail: map[string]error{
			"b": errors.New("device unreachable"),
			"c": errors.New("token revoked"),
		},
	}

	// Sequential delivery so a mid-batch failure could short-circuit if
	// the dispatcher were broken.
	d := NewDispatcher([]Gateway{push}, 1, logger)
	outcomes := d.Dispatch(context.Background(), []string{"a", "b", "c", "d"}, testAlert())

	require.Len(t, outcomes, 4)
	counts := outcomesByStatus(outcomes)
	require.Equal(t, 2, counts[StatusDelivered])
	require.Equal(t, 2, counts[StatusFailed])
	require.ElementsMatch(t, []string{"a", "d"}, push.delivered())

	for _, o := range outcomes {
		if o.Status == StatusFailed {
			require.NotEmpty(t, o.Reason)
			require.Equal(t, "push", o.Gateway)
		}
	}
}

func TestDispatcher_FallsBackToNextGateway(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	push := &fakeGateway{name: "push", addresses: map[string]bool{"a": true}}
	email := &fakeGateway{name: "email", addresses: map[string]bool{"b": true}}

	d := NewDispatcher([]Gateway{push, email}, 2, logger)
	outcomes := d.Dispatch(context.Background(), []string{"a", "b"}, testAlert())

	byRecipient := make(map[string]Outcome)
	for _, o := range outcomes {
		byRecipient[o.RecipientID] = o
	}

	require.Equal(t, StatusDelivered, byRecipient["a"].Status)
	require.Equal(t, "push", byRecipient["a"].Gateway)
	require.Equal(t, StatusDelivered, byRecipient["b"].Status)
	require.Equal(t, "email", byRecipient["b"].Gateway)
}

func TestDispatcher_NoAddressAnywhereIsSkipped(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	push := &fakeGateway{name: "push", addresses: map[string]bool{}}
	email := &fakeGateway{name: "email", addresses: map[string]bool{}}

	d := NewDispatcher([]Gateway{push, email}, 2, logger)
	outcomes := d.Dispatch(context.Background(), []string{"a"}, testAlert())

	require.Len(t, outcomes, 1)
	require.Equal(t, StatusSkipped, outcomes[0].Status)
	require.NotEmpty(t, outcomes[0].Reason)
}

func TestDispatcher_PushFailureDoesNotFallBack(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	push := &fakeGateway{
		name:      "push",
		addresses: map[string]bool{"a": true},
		fail:      map[string]error{"a": errors.New("device unreachable")},
	}
	email := &fakeGateway{name: "email", addresses: map[string]bool{"a": true}}

	d := NewDispatcher([]Gateway{push, email}, 1, logger)
	outcomes := d.Dispatch(context.Background(), []string{"a"}, testAlert())

	// A real failure is surfaced, not retried on another channel within
	// the same pass.
	require.Equal(t, StatusFailed, outcomes[0].Status)
	require.Equal(t, "push", outcomes[0].Gateway)
	require.Empty(t, email.delivered())
}

func TestDispatcher_EmptyRecipientSet(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	d := NewDispatcher([]Gateway{&fakeGateway{name: "push"}}, 2, logger)

	outcomes := d.Dispatch(context.Background(), nil, testAlert())
	require.Empty(t, outcomes)
}
