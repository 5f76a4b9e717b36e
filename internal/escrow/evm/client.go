package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"payso.org/internal/escrow"
	"payso.org/internal/obs"
)

const readAttempts = 3

// Client reads escrow ledger state from a node endpoint via eth_call and
// tracks transaction confirmations. It implements escrow.Reader and
// escrow.TokenReader.
type Client struct {
	rpc      *rpcClient
	contract escrow.Address
}

var (
	_ escrow.Reader      = (*Client)(nil)
	_ escrow.TokenReader = (*Client)(nil)
)

// NewClient connects to a node RPC endpoint for the given escrow contract.
func NewClient(endpoint string, contract escrow.Address) *Client {
	// 10 req/s with a small burst keeps public endpoints happy.
	return &Client{
		rpc:      newRPCClient(endpoint, rate.NewLimiter(rate.Limit(10), 20)),
		contract: contract,
	}
}

// ethCall performs a read-only contract call and returns the raw ABI bytes.
func (c *Client) ethCall(ctx context.Context, method string, to escrow.Address, data []byte) ([]byte, error) {
	var result string
	err := c.rpc.callRetry(ctx, readAttempts, "eth_call", &result,
		map[string]string{"to": string(to), "data": hexEncode(data)}, "latest")
	if err != nil {
		obs.LedgerRead(method, "error")
		return nil, fmt.Errorf("%w: %s: %v", escrow.ErrReadFailed, method, err)
	}
	raw, err := hexBytes(result)
	if err != nil {
		obs.LedgerRead(method, "error")
		return nil, fmt.Errorf("%w: %s: %v", escrow.ErrReadFailed, method, err)
	}
	obs.LedgerRead(method, "ok")
	return raw, nil
}

func (c *Client) Payment(ctx context.Context, id uint64) (escrow.Payment, error) {
	raw, err := c.ethCall(ctx, "getPayment", c.contract, encodeCall("getPayment(uint256)", uintWord(id)))
	if err != nil {
		return escrow.Payment{}, err
	}
	p, err := decodePayment(raw)
	if err != nil {
		return escrow.Payment{}, fmt.Errorf("%w: getPayment: %v", escrow.ErrReadFailed, err)
	}
	// The contract returns a zeroed record for an unassigned id.
	if p.Recipient.IsZero() {
		return escrow.Payment{}, fmt.Errorf("%w: payment %d", escrow.ErrNotFound, id)
	}
	return p, nil
}

func (c *Client) PaymentsByRecipient(ctx context.Context, recipient escrow.Address) ([]uint64, error) {
	arg, err := addressWord(recipient)
	if err != nil {
		return nil, err
	}
	raw, err := c.ethCall(ctx, "getPaymentsByRecipient", c.contract, encodeCall("getPaymentsByRecipient(address)", arg))
	if err != nil {
		return nil, err
	}
	items, err := decodeUint64Slice(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: getPaymentsByRecipient: %v", escrow.ErrReadFailed, err)
	}
	return items, nil
}

func (c *Client) PaymentCounter(ctx context.Context) (uint64, error) {
	raw, err := c.ethCall(ctx, "paymentCounter", c.contract, encodeCall("paymentCounter()"))
	if err != nil {
		return 0, err
	}
	w, err := wordAt(raw, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: paymentCounter: %v", escrow.ErrReadFailed, err)
	}
	n, err := decodeUint64(w)
	if err != nil {
		return 0, fmt.Errorf("%w: paymentCounter: %v", escrow.ErrReadFailed, err)
	}
	return n, nil
}

func (c *Client) readBool(ctx context.Context, method string, data []byte) (bool, error) {
	raw, err := c.ethCall(ctx, method, c.contract, data)
	if err != nil {
		return false, err
	}
	w, err := wordAt(raw, 0)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", escrow.ErrReadFailed, method, err)
	}
	v, err := decodeBool(w)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", escrow.ErrReadFailed, method, err)
	}
	return v, nil
}

func (c *Client) WorkVerified(ctx context.Context, id uint64) (bool, error) {
	return c.readBool(ctx, "workVerified", encodeCall("workVerified(uint256)", uintWord(id)))
}

func (c *Client) IsClaimable(ctx context.Context, id uint64) (bool, error) {
	return c.readBool(ctx, "isClaimable", encodeCall("isClaimable(uint256)", uintWord(id)))
}

func (c *Client) Employer(ctx context.Context) (escrow.Address, error) {
	raw, err := c.ethCall(ctx, "employer", c.contract, encodeCall("employer()"))
	if err != nil {
		return "", err
	}
	w, err := wordAt(raw, 0)
	if err != nil {
		return "", fmt.Errorf("%w: employer: %v", escrow.ErrReadFailed, err)
	}
	return decodeAddress(w), nil
}

func (c *Client) IsAuthorizedEmployer(ctx context.Context, addr escrow.Address) (bool, error) {
	arg, err := addressWord(addr)
	if err != nil {
		return false, err
	}
	return c.readBool(ctx, "isAuthorizedEmployer", encodeCall("isAuthorizedEmployer(address)", arg))
}

func (c *Client) Allowance(ctx context.Context, token, owner, spender escrow.Address) (*big.Int, error) {
	ow, err := addressWord(owner)
	if err != nil {
		return nil, err
	}
	sw, err := addressWord(spender)
	if err != nil {
		return nil, err
	}
	raw, err := c.ethCall(ctx, "allowance", token, encodeCall("allowance(address,address)", ow, sw))
	if err != nil {
		return nil, err
	}
	w, err := wordAt(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: allowance: %v", escrow.ErrReadFailed, err)
	}
	return decodeBig(w), nil
}

func (c *Client) BalanceOf(ctx context.Context, token, owner escrow.Address) (*big.Int, error) {
	ow, err := addressWord(owner)
	if err != nil {
		return nil, err
	}
	raw, err := c.ethCall(ctx, "balanceOf", token, encodeCall("balanceOf(address)", ow))
	if err != nil {
		return nil, err
	}
	w, err := wordAt(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: balanceOf: %v", escrow.ErrReadFailed, err)
	}
	return decodeBig(w), nil
}

type txReceipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
}

// WaitConfirmed polls for the transaction's receipt until the context ends.
// A mined status of 0x0 is a revert; the reason text stays opaque.
func (c *Client) WaitConfirmed(ctx context.Context, tx escrow.TxHash) (escrow.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		var rcpt *txReceipt
		if err := c.rpc.callRetry(ctx, readAttempts, "eth_getTransactionReceipt", &rcpt, string(tx)); err != nil {
			return escrow.Receipt{}, err
		}
		if rcpt != nil {
			block, err := decodeHexQuantity(rcpt.BlockNumber)
			if err != nil {
				return escrow.Receipt{}, err
			}
			out := escrow.Receipt{
				Hash:        tx,
				BlockNumber: block,
				OK:          rcpt.Status == "0x1",
			}
			if !out.OK {
				out.Reason = "execution reverted"
			}
			return out, nil
		}

		select {
		case <-ctx.Done():
			return escrow.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func decodeHexQuantity(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, nil
	}
	var v uint64
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		return 0, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}
