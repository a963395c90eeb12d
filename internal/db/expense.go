package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/karnwit/tabtally/internal/models"
	"github.com/karnwit/tabtally/internal/settle"
)

// CreateExpenseWithSplits inserts an expense and its splits in one database
// transaction. The splits must sum to the expense total and reference
// positive amounts; anything else is rejected before touching the tables.
func CreateExpenseWithSplits(ctx context.Context, tabID, payerParticipantID string, totalAmountCents int64, description string, splits []models.Split) (models.Expense, error) {
	tab, err := GetTab(ctx, tabID)
	if err != nil {
		return models.Expense{}, err
	}
	if tab.Status == models.TabStatusClosed {
		return models.Expense{}, fmt.Errorf("%w: cannot add expense", settle.ErrTabClosed)
	}

	var splitSum int64
	for _, s := range splits {
		if s.AmountCents <= 0 {
			return models.Expense{}, fmt.Errorf("split for participant %s must be positive, got %d", s.ParticipantID, s.AmountCents)
		}
		splitSum += s.AmountCents
	}
	if splitSum != totalAmountCents {
		return models.Expense{}, fmt.Errorf("splits sum to %d cents but expense total is %d cents", splitSum, totalAmountCents)
	}

	tx, err := Pool.Begin(ctx)
	if err != nil {
		return models.Expense{}, fmt.Errorf("failed to begin database transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var expense models.Expense
	err = tx.QueryRow(ctx,
		`INSERT INTO expenses (id, tab_id, payer_participant_id, total_amount_cents, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, tab_id, payer_participant_id, total_amount_cents, description, created_at`,
		uuid.NewString(), tabID, payerParticipantID, totalAmountCents, description,
	).Scan(&expense.ID, &expense.TabID, &expense.PayerParticipantID, &expense.TotalAmountCents, &expense.Description, &expense.CreatedAt)
	if err != nil {
		return models.Expense{}, fmt.Errorf("failed to create expense: %w", err)
	}

	for _, s := range splits {
		_, err = tx.Exec(ctx,
			`INSERT INTO splits (expense_id, participant_id, amount_cents) VALUES ($1, $2, $3)`,
			expense.ID, s.ParticipantID, s.AmountCents)
		if err != nil {
			return models.Expense{}, fmt.Errorf("failed to create split for participant %s: %w", s.ParticipantID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Expense{}, fmt.Errorf("failed to commit expense transaction: %w", err)
	}
	return expense, nil
}

// ListExpenses lists all expenses of a tab
func ListExpenses(ctx context.Context, tabID string) ([]models.Expense, error) {
	rows, err := Pool.Query(ctx,
		`SELECT id, tab_id, payer_participant_id, total_amount_cents, COALESCE(description, ''), created_at
		 FROM expenses WHERE tab_id = $1 ORDER BY created_at, id`, tabID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses of tab %s: %w", tabID, err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.TabID, &e.PayerParticipantID, &e.TotalAmountCents, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense row: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating expense rows: %w", err)
	}
	return expenses, nil
}

// ListSplits lists the splits of every expense on a tab
func ListSplits(ctx context.Context, tabID string) ([]models.Split, error) {
	rows, err := Pool.Query(ctx,
		`SELECT s.expense_id, s.participant_id, s.amount_cents
		 FROM splits s
		 JOIN expenses e ON e.id = s.expense_id
		 WHERE e.tab_id = $1
		 ORDER BY s.expense_id, s.participant_id`, tabID)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits of tab %s: %w", tabID, err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		var s models.Split
		if err := rows.Scan(&s.ExpenseID, &s.ParticipantID, &s.AmountCents); err != nil {
			return nil, fmt.Errorf("failed to scan split row: %w", err)
		}
		splits = append(splits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating split rows: %w", err)
	}
	return splits, nil
}
