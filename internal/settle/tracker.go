package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karnwit/tabtally/internal/models"
)

// AckStatus is the state of one transfer handshake.
type AckStatus string

const (
	StatusPending      AckStatus = "PENDING"
	StatusAcknowledged AckStatus = "ACKNOWLEDGED"
)

// Acknowledgement records the payment handshake for one directed transfer
// pair. At most one record exists per (tab, from, to); re-initiating a pair
// resets it to PENDING with fresh initiation fields.
type Acknowledgement struct {
	TabID                string     `json:"tab_id"`
	FromParticipantID    string     `json:"from_participant_id"`
	ToParticipantID      string     `json:"to_participant_id"`
	AmountCents          int64      `json:"amount_cents"`
	Status               AckStatus  `json:"status"`
	InitiatedByUserID    string     `json:"initiated_by_user_id"`
	InitiatedAt          time.Time  `json:"initiated_at"`
	AcknowledgedByUserID *string    `json:"acknowledged_by_user_id,omitempty"`
	AcknowledgedAt       *time.Time `json:"acknowledged_at,omitempty"`
}

// AcknowledgementView joins one authoritative transfer with whatever
// handshake state exists for it. Transfers nobody has initiated yet read as
// PENDING with nil timestamps; records are created lazily.
type AcknowledgementView struct {
	Transfer             Transfer   `json:"transfer"`
	Status               AckStatus  `json:"status"`
	InitiatedByUserID    *string    `json:"initiated_by_user_id,omitempty"`
	InitiatedAt          *time.Time `json:"initiated_at,omitempty"`
	AcknowledgedByUserID *string    `json:"acknowledged_by_user_id,omitempty"`
	AcknowledgedAt       *time.Time `json:"acknowledged_at,omitempty"`
}

// TabStore resolves tab existence and status.
type TabStore interface {
	GetTab(ctx context.Context, tabID string) (models.Tab, error)
}

// MembershipStore resolves who controls which participant of a tab.
type MembershipStore interface {
	OwnerUserID(ctx context.Context, tabID, participantID string) (string, error)
	IsMember(ctx context.Context, tabID, userID string) (bool, error)
}

// AckStore persists acknowledgements. UpsertPending and Acknowledge must be
// atomic with respect to concurrent calls for the same (tab, from, to) key:
// of two racing confirms exactly one wins, the other gets
// ErrAlreadyAcknowledged.
type AckStore interface {
	GetAck(ctx context.Context, tabID, fromID, toID string) (Acknowledgement, error)
	UpsertPending(ctx context.Context, ack Acknowledgement) (Acknowledgement, error)
	Acknowledge(ctx context.Context, tabID, fromID, toID, byUserID string, at time.Time) (Acknowledgement, error)
	ListAcks(ctx context.Context, tabID string) ([]Acknowledgement, error)
}

// Tracker drives the PENDING -> ACKNOWLEDGED handshake over the transfer set
// that is currently authoritative for the tab.
type Tracker struct {
	Tabs    TabStore
	Members MembershipStore
	Acks    AckStore
	Live    TransferSource
	Frozen  TransferSource
	Now     func() time.Time
}

// NewTracker wires a tracker with the real clock.
func NewTracker(tabs TabStore, members MembershipStore, acks AckStore, live, frozen TransferSource) *Tracker {
	return &Tracker{
		Tabs:    tabs,
		Members: members,
		Acks:    acks,
		Live:    live,
		Frozen:  frozen,
		Now:     time.Now,
	}
}

func (t *Tracker) source(tab models.Tab) TransferSource {
	if tab.Status == models.TabStatusClosed {
		return t.Frozen
	}
	return t.Live
}

// AuthoritativeTransfer resolves the current transfer between a directed
// pair, frozen for closed tabs and recomputed live for open ones.
func (t *Tracker) AuthoritativeTransfer(ctx context.Context, tabID, fromID, toID string) (Transfer, error) {
	tab, err := t.Tabs.GetTab(ctx, tabID)
	if err != nil {
		return Transfer{}, err
	}
	return t.lookupTransfer(ctx, tab, fromID, toID)
}

func (t *Tracker) lookupTransfer(ctx context.Context, tab models.Tab, fromID, toID string) (Transfer, error) {
	transfers, err := t.source(tab).Transfers(ctx, tab.ID)
	if err != nil {
		return Transfer{}, err
	}
	for _, tr := range transfers {
		if tr.FromParticipantID == fromID && tr.ToParticipantID == toID {
			return tr, nil
		}
	}
	return Transfer{}, fmt.Errorf("%w: %s -> %s", ErrTransferNotFound, fromID, toID)
}

// Initiate records the payer's "I paid this" for the (from, to) pair. The
// amount is re-resolved against the authoritative transfer set at this
// moment, never taken from the caller, so a stale client cannot pin an old
// amount. A pair that is already ACKNOWLEDGED cannot be re-initiated; a pair
// that was reset returns to PENDING with fresh initiation fields and cleared
// acknowledger fields.
func (t *Tracker) Initiate(ctx context.Context, tabID, callerUserID, fromID, toID string) (Acknowledgement, error) {
	tab, err := t.Tabs.GetTab(ctx, tabID)
	if err != nil {
		return Acknowledgement{}, err
	}

	owner, err := t.Members.OwnerUserID(ctx, tabID, fromID)
	if err != nil {
		return Acknowledgement{}, err
	}
	if owner != callerUserID {
		return Acknowledgement{}, fmt.Errorf("%w: only the payer can initiate", ErrForbidden)
	}

	transfer, err := t.lookupTransfer(ctx, tab, fromID, toID)
	if err != nil {
		return Acknowledgement{}, err
	}

	existing, err := t.Acks.GetAck(ctx, tabID, fromID, toID)
	if err == nil && existing.Status == StatusAcknowledged {
		return Acknowledgement{}, fmt.Errorf("%w: cannot re-initiate", ErrAlreadyAcknowledged)
	}
	if err != nil && !errors.Is(err, ErrAckNotFound) {
		return Acknowledgement{}, err
	}

	return t.Acks.UpsertPending(ctx, Acknowledgement{
		TabID:             tabID,
		FromParticipantID: fromID,
		ToParticipantID:   toID,
		AmountCents:       transfer.AmountCents,
		Status:            StatusPending,
		InitiatedByUserID: callerUserID,
		InitiatedAt:       t.Now(),
	})
}

// Confirm is the payee's side of the handshake. It checks identity and
// record state only; the amount is deliberately not re-checked against
// balances that may have moved since initiation.
func (t *Tracker) Confirm(ctx context.Context, tabID, callerUserID, fromID, toID string) (Acknowledgement, error) {
	if _, err := t.Tabs.GetTab(ctx, tabID); err != nil {
		return Acknowledgement{}, err
	}

	owner, err := t.Members.OwnerUserID(ctx, tabID, toID)
	if err != nil {
		return Acknowledgement{}, err
	}
	if owner != callerUserID {
		return Acknowledgement{}, fmt.Errorf("%w: only the payee can confirm", ErrForbidden)
	}

	return t.Acks.Acknowledge(ctx, tabID, fromID, toID, callerUserID, t.Now())
}

// List reports every authoritative transfer joined against its handshake
// state. Any participant of the tab may list.
func (t *Tracker) List(ctx context.Context, tabID, callerUserID string) ([]AcknowledgementView, error) {
	tab, err := t.Tabs.GetTab(ctx, tabID)
	if err != nil {
		return nil, err
	}

	member, err := t.Members.IsMember(ctx, tabID, callerUserID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: not a participant of this tab", ErrForbidden)
	}

	transfers, err := t.source(tab).Transfers(ctx, tab.ID)
	if err != nil {
		return nil, err
	}
	acks, err := t.Acks.ListAcks(ctx, tabID)
	if err != nil {
		return nil, err
	}

	byPair := make(map[[2]string]Acknowledgement, len(acks))
	for _, a := range acks {
		byPair[[2]string{a.FromParticipantID, a.ToParticipantID}] = a
	}

	views := make([]AcknowledgementView, 0, len(transfers))
	for _, tr := range transfers {
		view := AcknowledgementView{Transfer: tr, Status: StatusPending}
		if a, ok := byPair[[2]string{tr.FromParticipantID, tr.ToParticipantID}]; ok {
			view.Status = a.Status
			view.InitiatedByUserID = &a.InitiatedByUserID
			view.InitiatedAt = &a.InitiatedAt
			view.AcknowledgedByUserID = a.AcknowledgedByUserID
			view.AcknowledgedAt = a.AcknowledgedAt
		}
		views = append(views, view)
	}
	return views, nil
}
