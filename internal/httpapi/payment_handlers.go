package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"payso.org/internal/escrow"
	"payso.org/internal/session"
)

type sessionRequest struct {
	Address string `json:"address"`
}

type scheduleRequest struct {
	Recipient         string `json:"recipient"`
	Amount            string `json:"amount"` // human units, e.g. "1250.50"
	ReleaseAt         int64  `json:"release_at"`
	RequiresWorkEvent bool   `json:"requires_work_event"`
	Stablecoin        string `json:"stablecoin"`
	PreferredPayout   string `json:"preferred_payout"`
}

// paymentResponse is a PaymentView plus display formatting.
type paymentResponse struct {
	escrow.PaymentView
	AmountDisplay string `json:"amount_display"`
}

func (a *API) toResponse(v escrow.PaymentView) paymentResponse {
	return paymentResponse{
		PaymentView:   v,
		AmountDisplay: a.table.Format(v.Stablecoin, v.Amount),
	}
}

func (a *API) identity(r *http.Request) (escrow.Address, bool) {
	return session.IdentityFromContext(r.Context())
}

func decodeBody(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", escrow.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed payment id", escrow.ErrInvalidInput)
	}
	return id, nil
}

func (a *API) openSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	address, err := escrow.ParseAddress(req.Address)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	token, err := session.GenerateToken(address, a.sessionTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "cannot issue session token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"address": address,
	})
}

func (a *API) role(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(r)
	if !ok {
		writeErr(w, r, escrow.ErrNotConnected)
		return
	}
	role, err := a.client.Role(r.Context(), identity)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":     identity,
		"role":        role,
		"is_employer": role.IsEmployer(),
	})
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(r)
	if !ok {
		writeErr(w, r, escrow.ErrNotConnected)
		return
	}
	role, err := a.client.Role(r.Context(), identity)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	var views []escrow.PaymentView
	if role.IsEmployer() {
		views, err = a.client.EmployerView(r.Context())
	} else {
		views, err = a.client.RecipientView(r.Context(), identity)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	// Optional display filter; the resolver itself never filters.
	if want := r.URL.Query().Get("status"); want != "" {
		filtered := views[:0]
		for _, v := range views {
			if v.Status == escrow.PaymentStatus(want) {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	items := make([]paymentResponse, 0, len(views))
	for _, v := range views {
		items = append(items, a.toResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"role":  role,
	})
}

func (a *API) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	view, err := a.client.PaymentView(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toResponse(view))
}

func (a *API) schedulePayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(r)
	if !ok {
		writeErr(w, r, escrow.ErrNotConnected)
		return
	}
	var req scheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	recipient, err := escrow.ParseAddress(req.Recipient)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	stablecoin, err := escrow.ParseAddress(req.Stablecoin)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	preferred := stablecoin
	if req.PreferredPayout != "" {
		if preferred, err = escrow.ParseAddress(req.PreferredPayout); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	amount, err := a.table.Parse(stablecoin, req.Amount)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	rcpt, err := a.client.ScheduleDeposit(r.Context(), identity, escrow.Deposit{
		Recipient:         recipient,
		Amount:            amount,
		ReleaseAt:         req.ReleaseAt,
		RequiresWorkEvent: req.RequiresWorkEvent,
		Stablecoin:        stablecoin,
		PreferredPayout:   preferred,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rcpt)
}

func (a *API) claimPayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(r)
	if !ok {
		writeErr(w, r, escrow.ErrNotConnected)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rcpt, err := a.client.Claim(r.Context(), identity, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

func (a *API) verifyWork(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(r)
	if !ok {
		writeErr(w, r, escrow.ErrNotConnected)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rcpt, err := a.client.VerifyWork(r.Context(), identity, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}
