package evm

import (
	"context"
	"fmt"
	"math/big"

	"golang.org/x/time/rate"

	"payso.org/internal/escrow"
)

// Wallet is the external signing facility: a wallet gateway that signs
// personal messages and submits transactions on behalf of its accounts.
// personal_sign applies the signed-message prefix itself; nothing here may
// add or strip it.
type Wallet struct {
	rpc      *rpcClient
	node     *Client
	contract escrow.Address
}

var (
	_ escrow.Signer = (*Wallet)(nil)
	_ escrow.Writer = (*Wallet)(nil)
)

// NewWallet connects to a wallet gateway; confirmations are tracked through
// the node client.
func NewWallet(endpoint string, node *Client, contract escrow.Address) *Wallet {
	return &Wallet{
		rpc:      newRPCClient(endpoint, rate.NewLimiter(rate.Limit(5), 10)),
		node:     node,
		contract: contract,
	}
}

func (w *Wallet) Sign(ctx context.Context, from escrow.Address, digest [32]byte) ([]byte, error) {
	var result string
	// Signing is never retried: a declined prompt is an answer.
	if err := w.rpc.call(ctx, "personal_sign", &result, hexEncode(digest[:]), string(from)); err != nil {
		return nil, err
	}
	sig, err := hexBytes(result)
	if err != nil {
		return nil, fmt.Errorf("wallet returned malformed signature: %v", err)
	}
	return sig, nil
}

// send submits calldata as a transaction from the given account.
func (w *Wallet) send(ctx context.Context, from, to escrow.Address, data []byte) (escrow.TxHash, error) {
	var hash string
	err := w.rpc.call(ctx, "eth_sendTransaction", &hash, map[string]string{
		"from": string(from),
		"to":   string(to),
		"data": hexEncode(data),
	})
	if err != nil {
		return "", err
	}
	return escrow.TxHash(hash), nil
}

func (w *Wallet) DepositAndSchedule(ctx context.Context, from escrow.Address, d escrow.Deposit) (escrow.TxHash, error) {
	recipient, err := addressWord(d.Recipient)
	if err != nil {
		return "", err
	}
	amount, err := bigWord(d.Amount)
	if err != nil {
		return "", err
	}
	stablecoin, err := addressWord(d.Stablecoin)
	if err != nil {
		return "", err
	}
	payout, err := addressWord(d.PreferredPayout)
	if err != nil {
		return "", err
	}
	data := encodeCall("depositAndSchedule(address,uint256,uint256,bool,address,address)",
		recipient, amount, uintWord(uint64(d.ReleaseAt)), boolWord(d.RequiresWorkEvent), stablecoin, payout)
	return w.send(ctx, from, w.contract, data)
}

func (w *Wallet) ClaimPayment(ctx context.Context, from escrow.Address, id uint64) (escrow.TxHash, error) {
	return w.send(ctx, from, w.contract, encodeCall("claimPayment(uint256)", uintWord(id)))
}

func (w *Wallet) VerifyWork(ctx context.Context, from escrow.Address, id uint64, signature []byte) (escrow.TxHash, error) {
	// verifyWork(uint256,bytes): dynamic bytes arg sits after a two-word
	// head (id, offset), then length plus right-padded content.
	data := make([]byte, 0, 4+3*wordSize+len(signature)+wordSize)
	data = append(data, selector("verifyWork(uint256,bytes)")...)
	id32 := uintWord(id)
	data = append(data, id32[:]...)
	off := uintWord(2 * wordSize)
	data = append(data, off[:]...)
	length := uintWord(uint64(len(signature)))
	data = append(data, length[:]...)
	data = append(data, signature...)
	if pad := len(signature) % wordSize; pad != 0 {
		data = append(data, make([]byte, wordSize-pad)...)
	}
	return w.send(ctx, from, w.contract, data)
}

func (w *Wallet) AddAuthorizedEmployer(ctx context.Context, from, employer escrow.Address) (escrow.TxHash, error) {
	arg, err := addressWord(employer)
	if err != nil {
		return "", err
	}
	return w.send(ctx, from, w.contract, encodeCall("addAuthorizedEmployer(address)", arg))
}

func (w *Wallet) RemoveAuthorizedEmployer(ctx context.Context, from, employer escrow.Address) (escrow.TxHash, error) {
	arg, err := addressWord(employer)
	if err != nil {
		return "", err
	}
	return w.send(ctx, from, w.contract, encodeCall("removeAuthorizedEmployer(address)", arg))
}

func (w *Wallet) Approve(ctx context.Context, from, token, spender escrow.Address, amount *big.Int) (escrow.TxHash, error) {
	sp, err := addressWord(spender)
	if err != nil {
		return "", err
	}
	amt, err := bigWord(amount)
	if err != nil {
		return "", err
	}
	return w.send(ctx, from, token, encodeCall("approve(address,uint256)", sp, amt))
}

func (w *Wallet) WaitConfirmed(ctx context.Context, tx escrow.TxHash) (escrow.Receipt, error) {
	return w.node.WaitConfirmed(ctx, tx)
}
