package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/karnwit/tabtally/internal/settle"
)

var hundred = decimal.NewFromInt(100)

// parseAmountCents converts a human-entered decimal amount string ("10.01")
// into exact integer cents. Sub-cent precision and negative amounts are
// rejected. Floats never touch money on the way in.
func parseAmountCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", s)
	}
	if cents.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", s)
	}
	return cents.IntPart(), nil
}

// callerUserID extracts the authenticated user id the upstream auth layer
// attached to the request.
func callerUserID(r *http.Request) (string, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return "", errors.New("missing X-User-ID header")
	}
	return userID, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

func respondErrorJSON(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondError maps the core error taxonomy onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settle.ErrTabNotFound),
		errors.Is(err, settle.ErrParticipantNotFound),
		errors.Is(err, settle.ErrTransferNotFound),
		errors.Is(err, settle.ErrAckNotFound):
		respondErrorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settle.ErrForbidden):
		respondErrorJSON(w, http.StatusForbidden, err.Error())
	case errors.Is(err, settle.ErrAlreadyAcknowledged),
		errors.Is(err, settle.ErrTabClosed),
		errors.Is(err, settle.ErrTabOpen):
		respondErrorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, settle.ErrUnbalanced):
		// Corrupted ledger data; log loudly, tell the caller nothing
		// actionable beyond the fact.
		log.Printf("FATAL settlement invariant violation: %v", err)
		respondErrorJSON(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		respondErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}
