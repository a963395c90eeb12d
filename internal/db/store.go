package db

import (
	"context"
	"time"

	"github.com/karnwit/tabtally/internal/models"
	"github.com/karnwit/tabtally/internal/settle"
)

// Store adapts the package-level query functions to the narrow interfaces
// the settlement tracker consumes, so the tracker itself never sees SQL.
type Store struct{}

// NewStore returns a Store backed by the package connection pool.
func NewStore() *Store {
	return &Store{}
}

var (
	_ settle.TabStore        = (*Store)(nil)
	_ settle.MembershipStore = (*Store)(nil)
	_ settle.AckStore        = (*Store)(nil)
	_ settle.LedgerStore     = (*Store)(nil)
	_ settle.SettlementStore = (*Store)(nil)
)

func (s *Store) GetTab(ctx context.Context, tabID string) (models.Tab, error) {
	return GetTab(ctx, tabID)
}

func (s *Store) OwnerUserID(ctx context.Context, tabID, participantID string) (string, error) {
	return OwnerUserID(ctx, tabID, participantID)
}

func (s *Store) IsMember(ctx context.Context, tabID, userID string) (bool, error) {
	return IsTabMember(ctx, tabID, userID)
}

func (s *Store) ParticipantIDs(ctx context.Context, tabID string) ([]string, error) {
	return ParticipantIDs(ctx, tabID)
}

func (s *Store) Expenses(ctx context.Context, tabID string) ([]models.Expense, error) {
	return ListExpenses(ctx, tabID)
}

func (s *Store) Splits(ctx context.Context, tabID string) ([]models.Split, error) {
	return ListSplits(ctx, tabID)
}

func (s *Store) FrozenTransfers(ctx context.Context, tabID string) ([]settle.Transfer, error) {
	return FrozenTransfers(ctx, tabID)
}

func (s *Store) GetAck(ctx context.Context, tabID, fromID, toID string) (settle.Acknowledgement, error) {
	return GetAcknowledgement(ctx, tabID, fromID, toID)
}

func (s *Store) UpsertPending(ctx context.Context, ack settle.Acknowledgement) (settle.Acknowledgement, error) {
	return UpsertPendingAcknowledgement(ctx, ack)
}

func (s *Store) Acknowledge(ctx context.Context, tabID, fromID, toID, byUserID string, at time.Time) (settle.Acknowledgement, error) {
	return AcknowledgeTransfer(ctx, tabID, fromID, toID, byUserID, at)
}

func (s *Store) ListAcks(ctx context.Context, tabID string) ([]settle.Acknowledgement, error) {
	return ListAcknowledgements(ctx, tabID)
}
