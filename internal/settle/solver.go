package settle

import (
	"fmt"
	"sort"
)

// Transfer is one directed payment obligation produced by the solver.
type Transfer struct {
	FromParticipantID string `json:"from_participant_id"`
	ToParticipantID   string `json:"to_participant_id"`
	AmountCents       int64  `json:"amount_cents"`
}

// ComputeSettlement matches debtors against creditors greedily, largest
// amounts first, and returns the transfer list that cancels every balance.
// Ties are broken by ascending participant id, so identical inputs always
// produce identical output regardless of input ordering; the acknowledgement
// tracker relies on that when it re-resolves amounts. The input slice is
// never modified; the sweep runs on local copies.
//
// Nets that do not sum to zero violate the caller's precondition and come
// back as ErrUnbalanced instead of a silently rounded result.
func ComputeSettlement(nets []NetBalance) ([]Transfer, error) {
	var creditors, debtors []NetBalance
	for _, n := range nets {
		switch {
		case n.NetCents > 0:
			creditors = append(creditors, n)
		case n.NetCents < 0:
			debtors = append(debtors, n)
		}
	}

	sort.Slice(creditors, func(i, j int) bool {
		if creditors[i].NetCents != creditors[j].NetCents {
			return creditors[i].NetCents > creditors[j].NetCents
		}
		return creditors[i].ParticipantID < creditors[j].ParticipantID
	})
	sort.Slice(debtors, func(i, j int) bool {
		if debtors[i].NetCents != debtors[j].NetCents {
			return debtors[i].NetCents < debtors[j].NetCents
		}
		return debtors[i].ParticipantID < debtors[j].ParticipantID
	})

	var transfers []Transfer
	ci, di := 0, 0
	for ci < len(creditors) && di < len(debtors) {
		creditor := &creditors[ci]
		debtor := &debtors[di]

		amount := creditor.NetCents
		if owed := -debtor.NetCents; owed < amount {
			amount = owed
		}
		if amount > 0 {
			transfers = append(transfers, Transfer{
				FromParticipantID: debtor.ParticipantID,
				ToParticipantID:   creditor.ParticipantID,
				AmountCents:       amount,
			})
		}
		creditor.NetCents -= amount
		debtor.NetCents += amount
		if creditor.NetCents == 0 {
			ci++
		}
		if debtor.NetCents == 0 {
			di++
		}
	}

	var residual int64
	for _, c := range creditors {
		residual += c.NetCents
	}
	for _, d := range debtors {
		residual += d.NetCents
	}
	if residual != 0 {
		return nil, fmt.Errorf("%w: residual %d cents", ErrUnbalanced, residual)
	}
	return transfers, nil
}
