package settle

import (
	"context"

	"github.com/karnwit/tabtally/internal/models"
)

// TransferSource yields the authoritative transfer set for a tab. Open tabs
// recompute it from current balances on every call; closed tabs serve the
// settlement frozen at close time.
type TransferSource interface {
	Transfers(ctx context.Context, tabID string) ([]Transfer, error)
}

// LedgerStore supplies the raw material for a live settlement computation.
type LedgerStore interface {
	ParticipantIDs(ctx context.Context, tabID string) ([]string, error)
	Expenses(ctx context.Context, tabID string) ([]models.Expense, error)
	Splits(ctx context.Context, tabID string) ([]models.Split, error)
}

// SettlementStore reads the transfer set stored when a tab was closed.
type SettlementStore interface {
	FrozenTransfers(ctx context.Context, tabID string) ([]Transfer, error)
}

// LiveTransferSource recomputes the settlement from the tab's current
// expenses and splits. Safe for any number of concurrent callers; it holds
// no state of its own.
type LiveTransferSource struct {
	Ledger LedgerStore
}

func (s *LiveTransferSource) Transfers(ctx context.Context, tabID string) ([]Transfer, error) {
	participants, err := s.Ledger.ParticipantIDs(ctx, tabID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.Ledger.Expenses(ctx, tabID)
	if err != nil {
		return nil, err
	}
	splits, err := s.Ledger.Splits(ctx, tabID)
	if err != nil {
		return nil, err
	}
	return ComputeSettlement(ComputeNets(participants, expenses, splits))
}

// FrozenTransferSource serves the stored settlement of a closed tab.
type FrozenTransferSource struct {
	Settlements SettlementStore
}

func (s *FrozenTransferSource) Transfers(ctx context.Context, tabID string) ([]Transfer, error) {
	return s.Settlements.FrozenTransfers(ctx, tabID)
}
