package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/karnwit/tabtally/internal/settle"
)

const ackColumns = `tab_id, from_participant_id, to_participant_id, amount_cents, status,
	initiated_by_user_id, initiated_at, acknowledged_by_user_id, acknowledged_at`

func scanAck(row pgx.Row) (settle.Acknowledgement, error) {
	var ack settle.Acknowledgement
	err := row.Scan(
		&ack.TabID, &ack.FromParticipantID, &ack.ToParticipantID, &ack.AmountCents, &ack.Status,
		&ack.InitiatedByUserID, &ack.InitiatedAt, &ack.AcknowledgedByUserID, &ack.AcknowledgedAt,
	)
	return ack, err
}

// GetAcknowledgement fetches the acknowledgement record for a directed pair
func GetAcknowledgement(ctx context.Context, tabID, fromID, toID string) (settle.Acknowledgement, error) {
	ack, err := scanAck(Pool.QueryRow(ctx,
		`SELECT `+ackColumns+` FROM acknowledgements
		 WHERE tab_id = $1 AND from_participant_id = $2 AND to_participant_id = $3`,
		tabID, fromID, toID))
	if errors.Is(err, pgx.ErrNoRows) {
		return settle.Acknowledgement{}, fmt.Errorf("%w: %s -> %s", settle.ErrAckNotFound, fromID, toID)
	}
	if err != nil {
		return settle.Acknowledgement{}, fmt.Errorf("failed to get acknowledgement: %w", err)
	}
	return ack, nil
}

// UpsertPendingAcknowledgement creates or resets the acknowledgement for a
// directed pair. The existing row is locked first so a concurrent confirm
// cannot slip between the status check and the write; a row that is already
// ACKNOWLEDGED is never reset here.
func UpsertPendingAcknowledgement(ctx context.Context, ack settle.Acknowledgement) (settle.Acknowledgement, error) {
	tx, err := Pool.Begin(ctx)
	if err != nil {
		return settle.Acknowledgement{}, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM acknowledgements
		 WHERE tab_id = $1 AND from_participant_id = $2 AND to_participant_id = $3 FOR UPDATE`,
		ack.TabID, ack.FromParticipantID, ack.ToParticipantID,
	).Scan(&status)
	if err == nil && status == string(settle.StatusAcknowledged) {
		return settle.Acknowledgement{}, fmt.Errorf("%w: cannot re-initiate", settle.ErrAlreadyAcknowledged)
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return settle.Acknowledgement{}, fmt.Errorf("failed to lock acknowledgement row: %w", err)
	}

	stored, err := scanAck(tx.QueryRow(ctx,
		`INSERT INTO acknowledgements
			(tab_id, from_participant_id, to_participant_id, amount_cents, status, initiated_by_user_id, initiated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tab_id, from_participant_id, to_participant_id)
		 DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents,
			status = EXCLUDED.status,
			initiated_by_user_id = EXCLUDED.initiated_by_user_id,
			initiated_at = EXCLUDED.initiated_at,
			acknowledged_by_user_id = NULL,
			acknowledged_at = NULL
		 RETURNING `+ackColumns,
		ack.TabID, ack.FromParticipantID, ack.ToParticipantID, ack.AmountCents,
		settle.StatusPending, ack.InitiatedByUserID, ack.InitiatedAt))
	if err != nil {
		return settle.Acknowledgement{}, fmt.Errorf("failed to upsert acknowledgement: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return settle.Acknowledgement{}, fmt.Errorf("failed to commit acknowledgement upsert: %w", err)
	}
	return stored, nil
}

// AcknowledgeTransfer transitions a PENDING acknowledgement to ACKNOWLEDGED.
// The conditional update is the compare-and-swap: of two racing confirms
// exactly one matches status = 'PENDING', the other comes back
// ErrAlreadyAcknowledged.
func AcknowledgeTransfer(ctx context.Context, tabID, fromID, toID, byUserID string, at time.Time) (settle.Acknowledgement, error) {
	ack, err := scanAck(Pool.QueryRow(ctx,
		`UPDATE acknowledgements
		 SET status = $1, acknowledged_by_user_id = $2, acknowledged_at = $3
		 WHERE tab_id = $4 AND from_participant_id = $5 AND to_participant_id = $6 AND status = $7
		 RETURNING `+ackColumns,
		settle.StatusAcknowledged, byUserID, at, tabID, fromID, toID, settle.StatusPending))
	if err == nil {
		return ack, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return settle.Acknowledgement{}, fmt.Errorf("failed to acknowledge transfer: %w", err)
	}

	// No PENDING row matched: distinguish "already acknowledged" from
	// "never initiated".
	if _, getErr := GetAcknowledgement(ctx, tabID, fromID, toID); getErr == nil {
		return settle.Acknowledgement{}, fmt.Errorf("%w: confirm already recorded", settle.ErrAlreadyAcknowledged)
	} else if !errors.Is(getErr, settle.ErrAckNotFound) {
		return settle.Acknowledgement{}, getErr
	}
	return settle.Acknowledgement{}, fmt.Errorf("%w: %s -> %s", settle.ErrAckNotFound, fromID, toID)
}

// ListAcknowledgements lists every acknowledgement record of a tab
func ListAcknowledgements(ctx context.Context, tabID string) ([]settle.Acknowledgement, error) {
	rows, err := Pool.Query(ctx,
		`SELECT `+ackColumns+` FROM acknowledgements WHERE tab_id = $1
		 ORDER BY from_participant_id, to_participant_id`, tabID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acknowledgements of tab %s: %w", tabID, err)
	}
	defer rows.Close()

	var acks []settle.Acknowledgement
	for rows.Next() {
		ack, err := scanAck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan acknowledgement row: %w", err)
		}
		acks = append(acks, ack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating acknowledgement rows: %w", err)
	}
	return acks, nil
}
