package httpapi

import (
	"net/http"

	"payso.org/internal/escrow"
)

type employerRequest struct {
	Address string `json:"address"`
}

func (a *API) checkEmployer(w http.ResponseWriter, r *http.Request) {
	address, err := escrow.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	authorized, err := a.client.CheckAuthorized(r.Context(), address)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":    address,
		"authorized": authorized,
	})
}

func (a *API) addEmployer(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(r)
	if !ok {
		writeErr(w, r, escrow.ErrNotConnected)
		return
	}
	var req employerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	address, err := escrow.ParseAddress(req.Address)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rcpt, err := a.client.AddAuthorizedEmployer(r.Context(), identity, address)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

func (a *API) removeEmployer(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(r)
	if !ok {
		writeErr(w, r, escrow.ErrNotConnected)
		return
	}
	address, err := escrow.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rcpt, err := a.client.RemoveAuthorizedEmployer(r.Context(), identity, address)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}
