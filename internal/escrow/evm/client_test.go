package evm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"payso.org/internal/escrow"
)

const contractAddr = escrow.Address("0x00000000000000000000000000000000000000e5")

// fakeNode answers JSON-RPC eth_call requests keyed by calldata selector.
type fakeNode struct {
	t        *testing.T
	results  map[string]string // selector hex (no 0x) -> ABI result hex
	receipts map[string]*txReceipt
	calls    atomic.Int64
	fail     atomic.Int64 // requests to fail with HTTP 500 before serving
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)
	if n.fail.Load() > 0 {
		n.fail.Add(-1)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		n.t.Errorf("bad request body: %v", err)
		return
	}

	respond := func(result any) {
		raw, _ := json.Marshal(result)
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": json.RawMessage(raw)})
	}

	switch req.Method {
	case "eth_call":
		call := req.Params[0].(map[string]any)
		data := strings.TrimPrefix(call["data"].(string), "0x")
		sel := data[:8]
		result, ok := n.results[sel]
		if !ok {
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": -32000, "message": "execution reverted"},
			})
			return
		}
		respond(result)
	case "eth_getTransactionReceipt":
		respond(n.receipts[req.Params[0].(string)])
	default:
		n.t.Errorf("unexpected method %s", req.Method)
	}
}

func wordHex(w [32]byte) string { return hexEncode(w[:])[2:] }

func newFakeNode(t *testing.T) (*fakeNode, *Client, func()) {
	t.Helper()
	n := &fakeNode{t: t, results: map[string]string{}, receipts: map[string]*txReceipt{}}
	srv := httptest.NewServer(n)
	return n, NewClient(srv.URL, contractAddr), srv.Close
}

func selHex(sig string) string { return hexEncode(selector(sig))[2:] }

func TestClientPaymentCounter(t *testing.T) {
	node, client, done := newFakeNode(t)
	defer done()
	node.results[selHex("paymentCounter()")] = "0x" + wordHex(uintWord(42))

	n, err := client.PaymentCounter(context.Background())
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if n != 42 {
		t.Fatalf("counter = %d, want 42", n)
	}
}

func TestClientPaymentNotFound(t *testing.T) {
	node, client, done := newFakeNode(t)
	defer done()

	// Zeroed tuple: the contract's answer for an unassigned id.
	node.results[selHex("getPayment(uint256)")] = "0x" + strings.Repeat(wordHex([32]byte{}), 8)

	_, err := client.Payment(context.Background(), 9)
	if !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClientRetriesTransportFailures(t *testing.T) {
	node, client, done := newFakeNode(t)
	defer done()
	node.results[selHex("paymentCounter()")] = "0x" + wordHex(uintWord(7))
	node.fail.Store(2) // two 500s, then success, within the retry budget

	n, err := client.PaymentCounter(context.Background())
	if err != nil {
		t.Fatalf("counter after retries: %v", err)
	}
	if n != 7 {
		t.Fatalf("counter = %d, want 7", n)
	}
	if got := node.calls.Load(); got != 3 {
		t.Fatalf("node saw %d requests, want 3", got)
	}
}

// A node-level RPC error is an answer, not an outage; it must not be retried.
func TestClientNodeErrorNotRetried(t *testing.T) {
	node, client, done := newFakeNode(t)
	defer done()

	_, err := client.WorkVerified(context.Background(), 1)
	if !errors.Is(err, escrow.ErrReadFailed) {
		t.Fatalf("err = %v, want ErrReadFailed", err)
	}
	if got := node.calls.Load(); got != 1 {
		t.Fatalf("node saw %d requests, want 1", got)
	}
}

func TestClientReads(t *testing.T) {
	node, client, done := newFakeNode(t)
	defer done()
	ctx := context.Background()

	employer := escrow.Address("0x00000000000000000000000000000000000000a1")
	ew, _ := addressWord(employer)
	node.results[selHex("employer()")] = "0x" + wordHex(ew)
	node.results[selHex("workVerified(uint256)")] = "0x" + wordHex(boolWord(true))
	node.results[selHex("isClaimable(uint256)")] = "0x" + wordHex(boolWord(false))
	node.results[selHex("isAuthorizedEmployer(address)")] = "0x" + wordHex(boolWord(true))
	node.results[selHex("getPaymentsByRecipient(address)")] = "0x" + wordHex(uintWord(32)) + wordHex(uintWord(2)) + wordHex(uintWord(0)) + wordHex(uintWord(3))
	node.results[selHex("allowance(address,address)")] = "0x" + wordHex(uintWord(1234))
	node.results[selHex("balanceOf(address)")] = "0x" + wordHex(uintWord(9999))

	if got, err := client.Employer(ctx); err != nil || got != employer {
		t.Fatalf("employer: %s err=%v", got, err)
	}
	if v, err := client.WorkVerified(ctx, 1); err != nil || !v {
		t.Fatalf("workVerified: %v err=%v", v, err)
	}
	if v, err := client.IsClaimable(ctx, 1); err != nil || v {
		t.Fatalf("isClaimable: %v err=%v", v, err)
	}
	if v, err := client.IsAuthorizedEmployer(ctx, employer); err != nil || !v {
		t.Fatalf("isAuthorizedEmployer: %v err=%v", v, err)
	}
	ids, err := client.PaymentsByRecipient(ctx, employer)
	if err != nil || len(ids) != 2 || ids[0] != 0 || ids[1] != 3 {
		t.Fatalf("paymentsByRecipient: %v err=%v", ids, err)
	}
	if v, err := client.Allowance(ctx, contractAddr, employer, contractAddr); err != nil || v.Int64() != 1234 {
		t.Fatalf("allowance: %v err=%v", v, err)
	}
	if v, err := client.BalanceOf(ctx, contractAddr, employer); err != nil || v.Int64() != 9999 {
		t.Fatalf("balanceOf: %v err=%v", v, err)
	}
}

func TestClientWaitConfirmed(t *testing.T) {
	node, client, done := newFakeNode(t)
	defer done()

	node.receipts["0xabc"] = &txReceipt{TransactionHash: "0xabc", BlockNumber: "0x10", Status: "0x1"}
	rcpt, err := client.WaitConfirmed(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !rcpt.OK || rcpt.BlockNumber != 16 {
		t.Fatalf("receipt: %+v", rcpt)
	}

	node.receipts["0xdef"] = &txReceipt{TransactionHash: "0xdef", BlockNumber: "0x11", Status: "0x0"}
	rcpt, err = client.WaitConfirmed(context.Background(), "0xdef")
	if err != nil {
		t.Fatalf("wait reverted: %v", err)
	}
	if rcpt.OK || rcpt.Reason == "" {
		t.Fatalf("revert receipt: %+v", rcpt)
	}
}

func TestDecodeHexQuantity(t *testing.T) {
	cases := map[string]uint64{"0x0": 0, "0x10": 16, "0x": 0, "0xff": 255}
	for in, want := range cases {
		got, err := decodeHexQuantity(in)
		if err != nil || got != want {
			t.Fatalf("decodeHexQuantity(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := decodeHexQuantity("0xzz"); err == nil {
		t.Fatal("junk quantity accepted")
	}
}
