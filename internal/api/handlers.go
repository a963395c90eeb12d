package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/karnwit/tabtally/internal/db"
	"github.com/karnwit/tabtally/internal/models"
	"github.com/karnwit/tabtally/internal/settle"
	"github.com/karnwit/tabtally/pkg/qrcode"
)

var promptPayRegex = regexp.MustCompile(`^(\d{10}|\d{13}|ewallet-\d+)$`)

type createTabRequest struct {
	Name string `json:"name"`
}

func (a *API) handleCreateTab(w http.ResponseWriter, r *http.Request) {
	var req createTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondErrorJSON(w, http.StatusBadRequest, "name is required")
		return
	}

	tab, err := db.CreateTab(r.Context(), req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tab)
}

func (a *API) handleGetTab(w http.ResponseWriter, r *http.Request) {
	tab, err := db.GetTab(r.Context(), mux.Vars(r)["tab_id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tab)
}

type addParticipantRequest struct {
	DisplayName string `json:"display_name"`
	UserID      string `json:"user_id"`
}

func (a *API) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" || req.UserID == "" {
		respondErrorJSON(w, http.StatusBadRequest, "display_name and user_id are required")
		return
	}

	participant, err := db.AddParticipant(r.Context(), mux.Vars(r)["tab_id"], req.DisplayName, req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, participant)
}

func (a *API) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := db.ListParticipants(r.Context(), mux.Vars(r)["tab_id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, participants)
}

type splitInput struct {
	ParticipantID string `json:"participant_id"`
	Amount        string `json:"amount"`
}

type addExpenseRequest struct {
	PayerParticipantID string       `json:"payer_participant_id"`
	Amount             string       `json:"amount"`
	Description        string       `json:"description"`
	Splits             []splitInput `json:"splits,omitempty"`
	SplitEvenlyAmong   []string     `json:"split_evenly_among,omitempty"`
}

func (a *API) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	tabID := mux.Vars(r)["tab_id"]

	var req addExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PayerParticipantID == "" {
		respondErrorJSON(w, http.StatusBadRequest, "payer_participant_id and amount are required")
		return
	}

	totalCents, err := parseAmountCents(req.Amount)
	if err != nil {
		respondErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	var splits []models.Split
	switch {
	case len(req.Splits) > 0 && len(req.SplitEvenlyAmong) > 0:
		respondErrorJSON(w, http.StatusBadRequest, "provide either splits or split_evenly_among, not both")
		return
	case len(req.Splits) > 0:
		for _, in := range req.Splits {
			cents, err := parseAmountCents(in.Amount)
			if err != nil {
				respondErrorJSON(w, http.StatusBadRequest, err.Error())
				return
			}
			splits = append(splits, models.Split{ParticipantID: in.ParticipantID, AmountCents: cents})
		}
	case len(req.SplitEvenlyAmong) > 0:
		for _, share := range settle.DistributeEvenSplit(totalCents, req.SplitEvenlyAmong) {
			splits = append(splits, models.Split{ParticipantID: share.ParticipantID, AmountCents: share.AmountCents})
		}
	default:
		respondErrorJSON(w, http.StatusBadRequest, "splits or split_evenly_among is required")
		return
	}

	expense, err := db.CreateExpenseWithSplits(r.Context(), tabID, req.PayerParticipantID, totalCents, req.Description, splits)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, expense)
}

func (a *API) requireMember(ctx context.Context, w http.ResponseWriter, r *http.Request, tabID string) (string, bool) {
	userID, err := callerUserID(r)
	if err != nil {
		respondErrorJSON(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	member, err := db.IsTabMember(ctx, tabID, userID)
	if err != nil {
		respondError(w, err)
		return "", false
	}
	if !member {
		respondErrorJSON(w, http.StatusForbidden, "not a participant of this tab")
		return "", false
	}
	return userID, true
}

func (a *API) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tabID := mux.Vars(r)["tab_id"]

	if _, err := db.GetTab(ctx, tabID); err != nil {
		respondError(w, err)
		return
	}
	if _, ok := a.requireMember(ctx, w, r, tabID); !ok {
		return
	}

	participants, err := db.ParticipantIDs(ctx, tabID)
	if err != nil {
		respondError(w, err)
		return
	}
	expenses, err := db.ListExpenses(ctx, tabID)
	if err != nil {
		respondError(w, err)
		return
	}
	splits, err := db.ListSplits(ctx, tabID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settle.ComputeNets(participants, expenses, splits))
}

// authoritativeTransfers resolves the transfer set the tracker also uses:
// frozen for closed tabs, recomputed live for open ones.
func (a *API) authoritativeTransfers(ctx context.Context, tab models.Tab) ([]settle.Transfer, error) {
	if tab.Status == models.TabStatusClosed {
		return a.tracker.Frozen.Transfers(ctx, tab.ID)
	}
	return a.tracker.Live.Transfers(ctx, tab.ID)
}

func (a *API) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tabID := mux.Vars(r)["tab_id"]

	tab, err := db.GetTab(ctx, tabID)
	if err != nil {
		respondError(w, err)
		return
	}
	if _, ok := a.requireMember(ctx, w, r, tabID); !ok {
		return
	}

	transfers, err := a.authoritativeTransfers(ctx, tab)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"tab_id":    tab.ID,
		"status":    tab.Status,
		"transfers": transfers,
	})
}

func (a *API) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tabID := mux.Vars(r)["tab_id"]

	if _, err := db.GetTab(ctx, tabID); err != nil {
		respondError(w, err)
		return
	}
	if _, ok := a.requireMember(ctx, w, r, tabID); !ok {
		return
	}

	transfers, err := a.tracker.Live.Transfers(ctx, tabID)
	if err != nil {
		respondError(w, err)
		return
	}
	settlement, err := db.CloseTab(ctx, tabID, transfers)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"settlement": settlement,
		"transfers":  transfers,
	})
}

type acknowledgementRequest struct {
	FromParticipantID string `json:"from_participant_id"`
	ToParticipantID   string `json:"to_participant_id"`
}

func (a *API) handleInitiateAcknowledgement(w http.ResponseWriter, r *http.Request) {
	userID, err := callerUserID(r)
	if err != nil {
		respondErrorJSON(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req acknowledgementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FromParticipantID == "" || req.ToParticipantID == "" {
		respondErrorJSON(w, http.StatusBadRequest, "from_participant_id and to_participant_id are required")
		return
	}

	ack, err := a.tracker.Initiate(r.Context(), mux.Vars(r)["tab_id"], userID, req.FromParticipantID, req.ToParticipantID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ack)
}

func (a *API) handleConfirmAcknowledgement(w http.ResponseWriter, r *http.Request) {
	userID, err := callerUserID(r)
	if err != nil {
		respondErrorJSON(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req acknowledgementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FromParticipantID == "" || req.ToParticipantID == "" {
		respondErrorJSON(w, http.StatusBadRequest, "from_participant_id and to_participant_id are required")
		return
	}

	ack, err := a.tracker.Confirm(r.Context(), mux.Vars(r)["tab_id"], userID, req.FromParticipantID, req.ToParticipantID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ack)
}

func (a *API) handleListAcknowledgements(w http.ResponseWriter, r *http.Request) {
	userID, err := callerUserID(r)
	if err != nil {
		respondErrorJSON(w, http.StatusUnauthorized, err.Error())
		return
	}

	views, err := a.tracker.List(r.Context(), mux.Vars(r)["tab_id"], userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

type setPromptPayRequest struct {
	PromptPayID string `json:"promptpay_id"`
}

func (a *API) handleSetPromptPay(w http.ResponseWriter, r *http.Request) {
	userID, err := callerUserID(r)
	if err != nil {
		respondErrorJSON(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req setPromptPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !promptPayRegex.MatchString(req.PromptPayID) {
		respondErrorJSON(w, http.StatusBadRequest, "promptpay_id must be a 10 or 13 digit number or an ewallet id")
		return
	}

	if err := db.SetUserPromptPay(r.Context(), userID, req.PromptPayID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"promptpay_id": req.PromptPayID})
}

// handleTransferQR renders a PromptPay QR for one computed transfer so the
// payer can settle it from their banking app. This only displays payment
// details; no money moves through this service.
func (a *API) handleTransferQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	tabID, fromID, toID := vars["tab_id"], vars["from_id"], vars["to_id"]

	if _, err := db.GetTab(ctx, tabID); err != nil {
		respondError(w, err)
		return
	}
	if _, ok := a.requireMember(ctx, w, r, tabID); !ok {
		return
	}

	transfer, err := a.tracker.AuthoritativeTransfer(ctx, tabID, fromID, toID)
	if err != nil {
		respondError(w, err)
		return
	}

	payeeUserID, err := db.OwnerUserID(ctx, tabID, toID)
	if err != nil {
		respondError(w, err)
		return
	}
	promptPayID, ok, err := db.GetUserPromptPay(ctx, payeeUserID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !ok {
		respondErrorJSON(w, http.StatusNotFound, fmt.Sprintf("payee %s has no PromptPay ID registered", toID))
		return
	}

	png, err := qrcode.GeneratePNG(promptPayID, transfer.AmountCents)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		return
	}
}
