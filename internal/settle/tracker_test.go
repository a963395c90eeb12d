package settle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karnwit/tabtally/internal/models"
)

// In-memory stores mirroring the persistence contracts, so the tracker's
// state machine is exercised without a database.

type memTabs struct {
	tabs map[string]models.Tab
}

func (m *memTabs) GetTab(_ context.Context, tabID string) (models.Tab, error) {
	tab, ok := m.tabs[tabID]
	if !ok {
		return models.Tab{}, fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	return tab, nil
}

type memMembers struct {
	// participant id -> owning user id, per tab
	owners map[string]map[string]string
}

func (m *memMembers) OwnerUserID(_ context.Context, tabID, participantID string) (string, error) {
	owner, ok := m.owners[tabID][participantID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	return owner, nil
}

func (m *memMembers) IsMember(_ context.Context, tabID, userID string) (bool, error) {
	for _, owner := range m.owners[tabID] {
		if owner == userID {
			return true, nil
		}
	}
	return false, nil
}

type ackKey struct {
	tabID, fromID, toID string
}

type memAcks struct {
	mu   sync.Mutex
	acks map[ackKey]Acknowledgement
}

func newMemAcks() *memAcks {
	return &memAcks{acks: make(map[ackKey]Acknowledgement)}
}

func (m *memAcks) GetAck(_ context.Context, tabID, fromID, toID string) (Acknowledgement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ack, ok := m.acks[ackKey{tabID, fromID, toID}]
	if !ok {
		return Acknowledgement{}, ErrAckNotFound
	}
	return ack, nil
}

func (m *memAcks) UpsertPending(_ context.Context, ack Acknowledgement) (Acknowledgement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ackKey{ack.TabID, ack.FromParticipantID, ack.ToParticipantID}
	if existing, ok := m.acks[key]; ok && existing.Status == StatusAcknowledged {
		return Acknowledgement{}, ErrAlreadyAcknowledged
	}
	ack.Status = StatusPending
	ack.AcknowledgedByUserID = nil
	ack.AcknowledgedAt = nil
	m.acks[key] = ack
	return ack, nil
}

func (m *memAcks) Acknowledge(_ context.Context, tabID, fromID, toID, byUserID string, at time.Time) (Acknowledgement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ackKey{tabID, fromID, toID}
	ack, ok := m.acks[key]
	if !ok {
		return Acknowledgement{}, ErrAckNotFound
	}
	if ack.Status == StatusAcknowledged {
		return Acknowledgement{}, ErrAlreadyAcknowledged
	}
	ack.Status = StatusAcknowledged
	ack.AcknowledgedByUserID = &byUserID
	ack.AcknowledgedAt = &at
	m.acks[key] = ack
	return ack, nil
}

func (m *memAcks) ListAcks(_ context.Context, tabID string) ([]Acknowledgement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Acknowledgement
	for key, ack := range m.acks {
		if key.tabID == tabID {
			out = append(out, ack)
		}
	}
	return out, nil
}

type memLedger struct {
	participants []string
	expenses     []models.Expense
	splits       []models.Split
}

func (m *memLedger) ParticipantIDs(_ context.Context, _ string) ([]string, error) {
	return m.participants, nil
}

func (m *memLedger) Expenses(_ context.Context, _ string) ([]models.Expense, error) {
	return m.expenses, nil
}

func (m *memLedger) Splits(_ context.Context, _ string) ([]models.Split, error) {
	return m.splits, nil
}

type memSettlements struct {
	transfers map[string][]Transfer
}

func (m *memSettlements) FrozenTransfers(_ context.Context, tabID string) ([]Transfer, error) {
	transfers, ok := m.transfers[tabID]
	if !ok {
		return nil, fmt.Errorf("%w: no frozen settlement for tab %s", ErrTabOpen, tabID)
	}
	return transfers, nil
}

// newTestTracker builds a tracker over an open tab where userAlice paid 600
// on behalf of everyone: bob and carol each owe alice 200.
func newTestTracker(t *testing.T) (*Tracker, *memLedger, *memAcks) {
	t.Helper()

	ledger := &memLedger{
		participants: []string{"p-alice", "p-bob", "p-carol"},
		expenses: []models.Expense{
			{ID: "e1", TabID: "tab1", PayerParticipantID: "p-alice", TotalAmountCents: 600},
		},
		splits: []models.Split{
			{ExpenseID: "e1", ParticipantID: "p-alice", AmountCents: 200},
			{ExpenseID: "e1", ParticipantID: "p-bob", AmountCents: 200},
			{ExpenseID: "e1", ParticipantID: "p-carol", AmountCents: 200},
		},
	}
	acks := newMemAcks()
	tracker := NewTracker(
		&memTabs{tabs: map[string]models.Tab{
			"tab1": {ID: "tab1", Status: models.TabStatusOpen},
		}},
		&memMembers{owners: map[string]map[string]string{
			"tab1": {
				"p-alice": "user-alice",
				"p-bob":   "user-bob",
				"p-carol": "user-carol",
			},
		}},
		acks,
		&LiveTransferSource{Ledger: ledger},
		&FrozenTransferSource{Settlements: &memSettlements{transfers: map[string][]Transfer{}}},
	)
	tracker.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return tracker, ledger, acks
}

func TestInitiateResolvesAmountFromLiveBalances(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	ack, err := tracker.Initiate(context.Background(), "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, ack.Status)
	assert.Equal(t, int64(200), ack.AmountCents)
	assert.Equal(t, "user-bob", ack.InitiatedByUserID)
	assert.Nil(t, ack.AcknowledgedByUserID)
}

func TestInitiateByNonPayerForbidden(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	_, err := tracker.Initiate(context.Background(), "tab1", "user-carol", "p-bob", "p-alice")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestInitiateUnknownTab(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	_, err := tracker.Initiate(context.Background(), "nope", "user-bob", "p-bob", "p-alice")
	require.ErrorIs(t, err, ErrTabNotFound)
}

func TestInitiatePairWithNoTransfer(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	// alice is a creditor; she owes nobody.
	_, err := tracker.Initiate(context.Background(), "tab1", "user-alice", "p-alice", "p-bob")
	require.ErrorIs(t, err, ErrTransferNotFound)
}

func TestInitiateAfterConfirmConflicts(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)
	_, err = tracker.Confirm(ctx, "tab1", "user-alice", "p-bob", "p-alice")
	require.NoError(t, err)

	_, err = tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.ErrorIs(t, err, ErrAlreadyAcknowledged)
}

func TestReinitiatePicksUpDriftedAmount(t *testing.T) {
	tracker, ledger, _ := newTestTracker(t)
	ctx := context.Background()

	first, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)
	require.Equal(t, int64(200), first.AmountCents)

	// A new expense shifts what bob owes alice; re-initiation re-resolves
	// the amount instead of trusting the stale record.
	ledger.expenses = append(ledger.expenses, models.Expense{
		ID: "e2", TabID: "tab1", PayerParticipantID: "p-alice", TotalAmountCents: 300,
	})
	ledger.splits = append(ledger.splits,
		models.Split{ExpenseID: "e2", ParticipantID: "p-bob", AmountCents: 150},
		models.Split{ExpenseID: "e2", ParticipantID: "p-carol", AmountCents: 150},
	)

	second, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(350), second.AmountCents)
}

func TestConfirmByNonPayeeForbidden(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)

	_, err = tracker.Confirm(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestConfirmWithoutInitiation(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	_, err := tracker.Confirm(context.Background(), "tab1", "user-alice", "p-bob", "p-alice")
	require.ErrorIs(t, err, ErrAckNotFound)
}

func TestConfirmTwiceConflicts(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)

	ack, err := tracker.Confirm(ctx, "tab1", "user-alice", "p-bob", "p-alice")
	require.NoError(t, err)
	assert.Equal(t, StatusAcknowledged, ack.Status)
	require.NotNil(t, ack.AcknowledgedByUserID)
	assert.Equal(t, "user-alice", *ack.AcknowledgedByUserID)

	_, err = tracker.Confirm(ctx, "tab1", "user-alice", "p-bob", "p-alice")
	require.ErrorIs(t, err, ErrAlreadyAcknowledged)
}

func TestConfirmDoesNotRecheckAmount(t *testing.T) {
	tracker, ledger, _ := newTestTracker(t)
	ctx := context.Background()

	first, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)

	// Balances move between initiate and confirm. Confirmation still
	// succeeds with the amount captured at initiation; this is the intended
	// tradeoff, not drift detection.
	ledger.expenses = append(ledger.expenses, models.Expense{
		ID: "e2", TabID: "tab1", PayerParticipantID: "p-bob", TotalAmountCents: 90,
	})
	ledger.splits = append(ledger.splits,
		models.Split{ExpenseID: "e2", ParticipantID: "p-alice", AmountCents: 90},
	)

	ack, err := tracker.Confirm(ctx, "tab1", "user-alice", "p-bob", "p-alice")
	require.NoError(t, err)
	assert.Equal(t, first.AmountCents, ack.AmountCents)
}

func TestClosedTabUsesFrozenTransfers(t *testing.T) {
	tracker, ledger, _ := newTestTracker(t)
	ctx := context.Background()

	tracker.Tabs = &memTabs{tabs: map[string]models.Tab{
		"tab1": {ID: "tab1", Status: models.TabStatusClosed},
	}}
	tracker.Frozen = &FrozenTransferSource{Settlements: &memSettlements{
		transfers: map[string][]Transfer{
			"tab1": {{FromParticipantID: "p-bob", ToParticipantID: "p-alice", AmountCents: 200}},
		},
	}}

	// Live balances change after close; the frozen amount must win.
	ledger.expenses = nil
	ledger.splits = nil

	ack, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(200), ack.AmountCents)
}

func TestListJoinsTransfersAgainstAcks(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)
	_, err = tracker.Confirm(ctx, "tab1", "user-alice", "p-bob", "p-alice")
	require.NoError(t, err)

	views, err := tracker.List(ctx, "tab1", "user-carol")
	require.NoError(t, err)
	require.Len(t, views, 2)

	byFrom := make(map[string]AcknowledgementView, len(views))
	for _, v := range views {
		byFrom[v.Transfer.FromParticipantID] = v
	}

	bob := byFrom["p-bob"]
	assert.Equal(t, StatusAcknowledged, bob.Status)
	require.NotNil(t, bob.InitiatedByUserID)
	assert.Equal(t, "user-bob", *bob.InitiatedByUserID)
	require.NotNil(t, bob.AcknowledgedAt)

	// carol never initiated: her transfer reads PENDING with no record.
	carol := byFrom["p-carol"]
	assert.Equal(t, StatusPending, carol.Status)
	assert.Nil(t, carol.InitiatedAt)
	assert.Nil(t, carol.AcknowledgedAt)
}

func TestListByNonMemberForbidden(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	_, err := tracker.List(context.Background(), "tab1", "user-stranger")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestConcurrentConfirmsExactlyOneWins(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Initiate(ctx, "tab1", "user-bob", "p-bob", "p-alice")
	require.NoError(t, err)

	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.Confirm(ctx, "tab1", "user-alice", "p-bob", "p-alice")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ErrAlreadyAcknowledged)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
}
