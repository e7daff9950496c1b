// Package follower computes the eligible recipient set for a single
// fan-out. The set is derived fresh from the organization's membership
// on every publish and never cached.
package follower

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/beaconhq/alert-pipeline/internal/storage"
)

// PreferenceFilter narrows a recipient set to those whose stored group
// notification preferences include the given group. It is external
// delegated logic; the resolver treats it as a black box returning a
// subset.
type PreferenceFilter interface {
	FilterByGroupPreference(ctx context.Context, recipientIDs []string, groupID string) ([]string, error)
}

// Resolver resolves the eligible recipients of an alert.
type Resolver struct {
	logger    *zap.Logger
	followers storage.FollowerStore
	prefs     PreferenceFilter
}

// NewResolver creates a follower resolver.
func NewResolver(followers storage.FollowerStore, prefs PreferenceFilter, logger *zap.Logger) *Resolver {
	return &Resolver{
		logger:    logger.Named("resolver"),
		followers: followers,
		prefs:     prefs,
	}
}

// EligibleRecipients returns the recipient IDs that should be notified
// about an alert posted by posterID under orgID, optionally scoped to
// groupID.
//
// The poster is removed unconditionally: the creator of an alert is
// never notified about their own alert, even when they also follow the
// organization. An organization with zero followers yields an empty set,
// not an error.
func (r *Resolver) EligibleRecipients(ctx context.Context, orgID, posterID, groupID string) ([]string, error) {
	followers, err := r.followers.ActiveFollowers(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load followers for organization %s: %w", orgID, err)
	}

	seen := make(map[string]struct{}, len(followers))
	recipients := make([]string, 0, len(followers))
	for _, f := range followers {
		if f.RecipientID == posterID {
			continue
		}
		if _, ok := seen[f.RecipientID]; ok {
			continue
		}
		seen[f.RecipientID] = struct{}{}
		recipients = append(recipients, f.RecipientID)
	}

	if groupID == "" || len(recipients) == 0 {
		return recipients, nil
	}

	filtered, err := r.prefs.FilterByGroupPreference(ctx, recipients, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to filter recipients by group %s: %w", groupID, err)
	}

	r.logger.Debug("Filtered recipients by group preference",
		zap.String("organization_id", orgID),
		zap.String("group_id", groupID),
		zap.Int("before", len(recipients)),
		zap.Int("after", len(filtered)))

	return filtered, nil
}
