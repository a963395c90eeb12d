package settle

import (
	"sort"

	"github.com/karnwit/tabtally/internal/models"
)

// NetBalance is one participant's aggregate position on a tab: positive
// means the group owes them, negative means they owe the group.
type NetBalance struct {
	ParticipantID string `json:"participant_id"`
	NetCents      int64  `json:"net_cents"`
}

// Share is one participant's portion of an evenly divided amount.
type Share struct {
	ParticipantID string `json:"participant_id"`
	AmountCents   int64  `json:"amount_cents"`
}

// ComputeNets reduces expenses and splits into one net balance per
// participant. Every id in participants gets an entry even if it never
// transacted; ids appearing only in expenses or splits accumulate into fresh
// zero-initialized entries rather than being rejected. All arithmetic is
// integer cents. The result is sorted by participant id for stable output,
// but callers should not depend on the order.
func ComputeNets(participants []string, expenses []models.Expense, splits []models.Split) []NetBalance {
	nets := make(map[string]int64, len(participants))
	for _, id := range participants {
		nets[id] = 0
	}
	for _, e := range expenses {
		nets[e.PayerParticipantID] += e.TotalAmountCents
	}
	for _, s := range splits {
		nets[s.ParticipantID] -= s.AmountCents
	}

	out := make([]NetBalance, 0, len(nets))
	for id, cents := range nets {
		out = append(out, NetBalance{ParticipantID: id, NetCents: cents})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out
}

// DistributeEvenSplit divides totalCents across the given participants as
// evenly as integer cents allow. Shares differ by at most one cent and the
// leftover cents always land on the highest participant ids, so the result
// is independent of the input order.
func DistributeEvenSplit(totalCents int64, participantIDs []string) []Share {
	if len(participantIDs) == 0 {
		return nil
	}

	ids := make([]string, len(participantIDs))
	copy(ids, participantIDs)
	sort.Strings(ids)

	n := int64(len(ids))
	base := totalCents / n
	remainder := totalCents % n

	shares := make([]Share, len(ids))
	for i, id := range ids {
		amount := base
		if int64(len(ids)-i) <= remainder {
			amount++
		}
		shares[i] = Share{ParticipantID: id, AmountCents: amount}
	}
	return shares
}
