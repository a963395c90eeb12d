package settle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSettlementGreedyLargestFirst(t *testing.T) {
	nets := []NetBalance{
		{ParticipantID: "A", NetCents: 500},
		{ParticipantID: "B", NetCents: 300},
		{ParticipantID: "C", NetCents: -400},
		{ParticipantID: "D", NetCents: -400},
	}

	transfers, err := ComputeSettlement(nets)
	require.NoError(t, err)

	assert.Equal(t, []Transfer{
		{FromParticipantID: "C", ToParticipantID: "A", AmountCents: 400},
		{FromParticipantID: "D", ToParticipantID: "A", AmountCents: 100},
		{FromParticipantID: "D", ToParticipantID: "B", AmountCents: 300},
	}, transfers)
}

func TestComputeSettlementDropsZeroNets(t *testing.T) {
	transfers, err := ComputeSettlement([]NetBalance{
		{ParticipantID: "C", NetCents: -200},
		{ParticipantID: "B", NetCents: 0},
		{ParticipantID: "A", NetCents: 200},
	})
	require.NoError(t, err)

	assert.Equal(t, []Transfer{
		{FromParticipantID: "C", ToParticipantID: "A", AmountCents: 200},
	}, transfers)
}

func TestComputeSettlementAllZero(t *testing.T) {
	transfers, err := ComputeSettlement([]NetBalance{
		{ParticipantID: "A", NetCents: 0},
		{ParticipantID: "B", NetCents: 0},
		{ParticipantID: "C", NetCents: 0},
	})
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestComputeSettlementUnbalancedFails(t *testing.T) {
	_, err := ComputeSettlement([]NetBalance{
		{ParticipantID: "A", NetCents: 100},
		{ParticipantID: "B", NetCents: -90},
	})
	require.ErrorIs(t, err, ErrUnbalanced)
}

func TestComputeSettlementDeterministicUnderReordering(t *testing.T) {
	base := []NetBalance{
		{ParticipantID: "A", NetCents: 500},
		{ParticipantID: "B", NetCents: 300},
		{ParticipantID: "C", NetCents: -400},
		{ParticipantID: "D", NetCents: -400},
	}
	permutations := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}

	want, err := ComputeSettlement(base)
	require.NoError(t, err)

	for _, perm := range permutations {
		shuffled := make([]NetBalance, len(base))
		for i, j := range perm {
			shuffled[i] = base[j]
		}
		got, err := ComputeSettlement(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestComputeSettlementLeavesInputUntouched(t *testing.T) {
	nets := []NetBalance{
		{ParticipantID: "A", NetCents: 300},
		{ParticipantID: "B", NetCents: -300},
	}

	_, err := ComputeSettlement(nets)
	require.NoError(t, err)

	assert.Equal(t, int64(300), nets[0].NetCents)
	assert.Equal(t, int64(-300), nets[1].NetCents)
}

func TestComputeSettlementReplayCancelsEveryBalance(t *testing.T) {
	nets := []NetBalance{
		{ParticipantID: "A", NetCents: 1250},
		{ParticipantID: "B", NetCents: -333},
		{ParticipantID: "C", NetCents: -333},
		{ParticipantID: "D", NetCents: -334},
		{ParticipantID: "E", NetCents: -250},
		{ParticipantID: "F", NetCents: 0},
	}

	transfers, err := ComputeSettlement(nets)
	require.NoError(t, err)

	remaining := make(map[string]int64, len(nets))
	for _, n := range nets {
		remaining[n.ParticipantID] = n.NetCents
	}
	for _, tr := range transfers {
		require.Positive(t, tr.AmountCents)
		require.NotEqual(t, tr.FromParticipantID, tr.ToParticipantID)
		remaining[tr.FromParticipantID] += tr.AmountCents
		remaining[tr.ToParticipantID] -= tr.AmountCents
	}
	for id, cents := range remaining {
		assert.Zerof(t, cents, "participant %s not settled", id)
	}
}
