package api

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karnwit/tabtally/internal/settle"
)

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10.01", 1001},
		{"0.05", 5},
		{"7", 700},
		{"1250.00", 125000},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := parseAmountCents(tc.in)
		require.NoErrorf(t, err, "amount %q", tc.in)
		assert.Equalf(t, tc.want, got, "amount %q", tc.in)
	}
}

func TestParseAmountCentsRejectsBadInput(t *testing.T) {
	for _, in := range []string{"12.345", "-1.00", "abc", "1e-3", ""} {
		_, err := parseAmountCents(in)
		assert.Errorf(t, err, "amount %q should be rejected", in)
	}
}

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
	}{
		{fmt.Errorf("wrap: %w", settle.ErrTabNotFound), 404},
		{settle.ErrTransferNotFound, 404},
		{settle.ErrAckNotFound, 404},
		{settle.ErrParticipantNotFound, 404},
		{fmt.Errorf("%w: only the payer can initiate", settle.ErrForbidden), 403},
		{settle.ErrAlreadyAcknowledged, 409},
		{settle.ErrTabClosed, 409},
		{settle.ErrTabOpen, 409},
		{fmt.Errorf("%w: residual 10 cents", settle.ErrUnbalanced), 422},
		{errors.New("boom"), 500},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		respondError(w, tc.err)
		assert.Equalf(t, tc.wantStatus, w.Code, "error %v", tc.err)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	}
}
