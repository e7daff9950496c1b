package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// FilterByGroupPreference returns the subset of recipientIDs whose active
// follower records opted into the given group. It backs the group
// preference filter boundary used during fan-out.
func (s *SQLite) FilterByGroupPreference(ctx context.Context, recipientIDs []string, groupID string) ([]string, error) {
	if len(recipientIDs) == 0 || groupID == "" {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(recipientIDs)-1) + "?"
	args := make([]interface{}, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT recipient_id, group_preferences
		FROM followers
		WHERE active = 1 AND recipient_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query group preferences: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var matched []string
	for rows.Next() {
		var recipientID string
		var prefs sql.NullString
		if err := rows.Scan(&recipientID, &prefs); err != nil {
			return nil, fmt.Errorf("failed to scan group preferences: %w", err)
		}

		groups, err := unmarshalStrings(prefs)
		if err != nil {
			return nil, fmt.Errorf("failed to decode group preferences: %w", err)
		}
		for _, g := range groups {
			if g == groupID {
				if _, ok := seen[recipientID]; !ok {
					seen[recipientID] = struct{}{}
					matched = append(matched, recipientID)
				}
				break
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return matched, nil
}
