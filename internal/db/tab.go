package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karnwit/tabtally/internal/models"
	"github.com/karnwit/tabtally/internal/settle"
)

// CreateTab creates a new open tab and returns it
func CreateTab(ctx context.Context, name string) (models.Tab, error) {
	var tab models.Tab
	err := Pool.QueryRow(ctx,
		`INSERT INTO tabs (id, name, status) VALUES ($1, $2, $3)
		 RETURNING id, name, status, created_at, closed_at`,
		uuid.NewString(), name, models.TabStatusOpen,
	).Scan(&tab.ID, &tab.Name, &tab.Status, &tab.CreatedAt, &tab.ClosedAt)
	if err != nil {
		return models.Tab{}, fmt.Errorf("failed to create tab: %w", err)
	}
	return tab, nil
}

// GetTab retrieves a tab by ID
func GetTab(ctx context.Context, tabID string) (models.Tab, error) {
	var tab models.Tab
	err := Pool.QueryRow(ctx,
		`SELECT id, name, status, created_at, closed_at FROM tabs WHERE id = $1`, tabID,
	).Scan(&tab.ID, &tab.Name, &tab.Status, &tab.CreatedAt, &tab.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tab{}, fmt.Errorf("%w: %s", settle.ErrTabNotFound, tabID)
	}
	if err != nil {
		return models.Tab{}, fmt.Errorf("failed to get tab %s: %w", tabID, err)
	}
	return tab, nil
}

// AddParticipant adds a participant to a tab. Adding to a closed tab is
// rejected because it would change a frozen settlement's participant set.
func AddParticipant(ctx context.Context, tabID, displayName, userID string) (models.Participant, error) {
	tab, err := GetTab(ctx, tabID)
	if err != nil {
		return models.Participant{}, err
	}
	if tab.Status == models.TabStatusClosed {
		return models.Participant{}, fmt.Errorf("%w: cannot add participant", settle.ErrTabClosed)
	}

	var p models.Participant
	err = Pool.QueryRow(ctx,
		`INSERT INTO participants (id, tab_id, display_name, user_id) VALUES ($1, $2, $3, $4)
		 RETURNING id, tab_id, display_name, user_id, created_at`,
		uuid.NewString(), tabID, displayName, userID,
	).Scan(&p.ID, &p.TabID, &p.DisplayName, &p.UserID, &p.CreatedAt)
	if err != nil {
		return models.Participant{}, fmt.Errorf("failed to add participant to tab %s: %w", tabID, err)
	}
	return p, nil
}

// ListParticipants lists all participants of a tab
func ListParticipants(ctx context.Context, tabID string) ([]models.Participant, error) {
	rows, err := Pool.Query(ctx,
		`SELECT id, tab_id, display_name, user_id, created_at
		 FROM participants WHERE tab_id = $1 ORDER BY created_at, id`, tabID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants of tab %s: %w", tabID, err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.TabID, &p.DisplayName, &p.UserID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating participant rows: %w", err)
	}
	return participants, nil
}

// ParticipantIDs returns the ids of all participants of a tab
func ParticipantIDs(ctx context.Context, tabID string) ([]string, error) {
	participants, err := ListParticipants(ctx, tabID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// OwnerUserID returns the user controlling a participant of a tab
func OwnerUserID(ctx context.Context, tabID, participantID string) (string, error) {
	var userID string
	err := Pool.QueryRow(ctx,
		`SELECT user_id FROM participants WHERE tab_id = $1 AND id = $2`,
		tabID, participantID,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s in tab %s", settle.ErrParticipantNotFound, participantID, tabID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up owner of participant %s: %w", participantID, err)
	}
	return userID, nil
}

// IsTabMember reports whether the user controls any participant of the tab
func IsTabMember(ctx context.Context, tabID, userID string) (bool, error) {
	var member bool
	err := Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE tab_id = $1 AND user_id = $2)`,
		tabID, userID,
	).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("failed to check tab membership: %w", err)
	}
	return member, nil
}
