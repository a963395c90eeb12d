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

// CloseTab marks the tab closed and stores the given transfer set as its
// frozen settlement, all in one database transaction. The tab row is locked
// first so two racing closes cannot both freeze; the loser sees ErrTabClosed.
func CloseTab(ctx context.Context, tabID string, transfers []settle.Transfer) (models.Settlement, error) {
	tx, err := Pool.Begin(ctx)
	if err != nil {
		return models.Settlement{}, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM tabs WHERE id = $1 FOR UPDATE`, tabID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Settlement{}, fmt.Errorf("%w: %s", settle.ErrTabNotFound, tabID)
	}
	if err != nil {
		return models.Settlement{}, fmt.Errorf("failed to lock tab %s: %w", tabID, err)
	}
	if status == models.TabStatusClosed {
		return models.Settlement{}, fmt.Errorf("%w: already closed", settle.ErrTabClosed)
	}

	_, err = tx.Exec(ctx,
		`UPDATE tabs SET status = $1, closed_at = CURRENT_TIMESTAMP WHERE id = $2`,
		models.TabStatusClosed, tabID)
	if err != nil {
		return models.Settlement{}, fmt.Errorf("failed to close tab %s: %w", tabID, err)
	}

	var settlement models.Settlement
	err = tx.QueryRow(ctx,
		`INSERT INTO settlements (id, tab_id) VALUES ($1, $2) RETURNING id, tab_id, created_at`,
		uuid.NewString(), tabID,
	).Scan(&settlement.ID, &settlement.TabID, &settlement.CreatedAt)
	if err != nil {
		return models.Settlement{}, fmt.Errorf("failed to create settlement for tab %s: %w", tabID, err)
	}

	for _, tr := range transfers {
		_, err = tx.Exec(ctx,
			`INSERT INTO settlement_transfers (settlement_id, from_participant_id, to_participant_id, amount_cents)
			 VALUES ($1, $2, $3, $4)`,
			settlement.ID, tr.FromParticipantID, tr.ToParticipantID, tr.AmountCents)
		if err != nil {
			return models.Settlement{}, fmt.Errorf("failed to store settlement transfer: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Settlement{}, fmt.Errorf("failed to commit settlement for tab %s: %w", tabID, err)
	}
	return settlement, nil
}

// FrozenTransfers reads the transfer set stored when the tab was closed.
// Returns ErrTabOpen if no settlement has been frozen for the tab.
func FrozenTransfers(ctx context.Context, tabID string) ([]settle.Transfer, error) {
	var settlementID string
	err := Pool.QueryRow(ctx, `SELECT id FROM settlements WHERE tab_id = $1`, tabID).Scan(&settlementID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no frozen settlement for tab %s", settle.ErrTabOpen, tabID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find settlement for tab %s: %w", tabID, err)
	}

	rows, err := Pool.Query(ctx,
		`SELECT from_participant_id, to_participant_id, amount_cents
		 FROM settlement_transfers WHERE settlement_id = $1
		 ORDER BY amount_cents DESC, from_participant_id, to_participant_id`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement transfers: %w", err)
	}
	defer rows.Close()

	var transfers []settle.Transfer
	for rows.Next() {
		var tr settle.Transfer
		if err := rows.Scan(&tr.FromParticipantID, &tr.ToParticipantID, &tr.AmountCents); err != nil {
			return nil, fmt.Errorf("failed to scan settlement transfer row: %w", err)
		}
		transfers = append(transfers, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating settlement transfer rows: %w", err)
	}
	return transfers, nil
}
