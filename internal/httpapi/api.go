package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"payso.org/internal/escrow"
	"payso.org/internal/obs"
	"payso.org/internal/tokens"
)

// ReadyProbe checks dependencies (cache DB ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the escrow client.
type API struct {
	mux        *http.ServeMux
	client     *escrow.Client
	table      tokens.Table
	readyProbe ReadyProbe
	version    string

	sessionTTL time.Duration
	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, client *escrow.Client, table tokens.Table) *API {
	a := &API{
		mux:        http.NewServeMux(),
		client:     client,
		table:      table,
		readyProbe: rp,
		version:    version,
		sessionTTL: 12 * time.Hour,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /readyz", a.ready)
	a.mux.HandleFunc("GET /v1/info", a.info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/session", a.openSession)
	a.mux.HandleFunc("GET /v1/role", a.role)

	a.mux.HandleFunc("GET /v1/payments", a.listPayments)
	a.mux.HandleFunc("POST /v1/payments", a.schedulePayment)
	a.mux.HandleFunc("GET /v1/payments/{id}", a.getPayment)
	a.mux.HandleFunc("POST /v1/payments/{id}/claim", a.claimPayment)
	a.mux.HandleFunc("POST /v1/payments/{id}/verify", a.verifyWork)

	a.mux.HandleFunc("GET /v1/employers/{address}", a.checkEmployer)
	a.mux.HandleFunc("POST /v1/employers", a.addEmployer)
	a.mux.HandleFunc("DELETE /v1/employers/{address}", a.removeEmployer)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withSession(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = RequestID(h)
	h = Logging(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "payso-api",
		"version": a.version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "payso-api",
		"version": a.version,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
