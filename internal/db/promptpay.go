package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SetUserPromptPay saves or updates the PromptPay ID for a user
func SetUserPromptPay(ctx context.Context, userID, promptPayID string) error {
	_, err := Pool.Exec(ctx,
		`INSERT INTO user_promptpay (user_id, promptpay_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id)
		 DO UPDATE SET promptpay_id = EXCLUDED.promptpay_id, updated_at = CURRENT_TIMESTAMP`,
		userID, promptPayID)
	if err != nil {
		return fmt.Errorf("failed to save PromptPay ID for user %s: %w", userID, err)
	}
	return nil
}

// GetUserPromptPay retrieves the PromptPay ID for a user. The bool result
// reports whether the user has registered one.
func GetUserPromptPay(ctx context.Context, userID string) (string, bool, error) {
	var promptPayID string
	err := Pool.QueryRow(ctx,
		`SELECT promptpay_id FROM user_promptpay WHERE user_id = $1`, userID,
	).Scan(&promptPayID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get PromptPay ID for user %s: %w", userID, err)
	}
	return promptPayID, true, nil
}
