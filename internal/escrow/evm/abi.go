// Package evm speaks the escrow ledger's native protocol: ABI-encoded calls
// carried over JSON-RPC. Only the PayrollEscrow and ERC-20 methods this
// client consumes are encoded; there is no general ABI machinery here.
package evm

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"

	"payso.org/internal/escrow"
)

const wordSize = 32

func keccak(data []byte) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(out[:0])
	return out
}

// selector is the first 4 bytes of the keccak of the method signature.
func selector(signature string) []byte {
	sum := keccak([]byte(signature))
	return sum[:4]
}

func uintWord(v uint64) [32]byte {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

func bigWord(v *big.Int) ([32]byte, error) {
	var w [32]byte
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		return w, fmt.Errorf("value out of uint256 range")
	}
	v.FillBytes(w[:])
	return w, nil
}

func addressWord(a escrow.Address) ([32]byte, error) {
	var w [32]byte
	raw, err := a.Bytes()
	if err != nil {
		return w, err
	}
	copy(w[12:], raw[:])
	return w, nil
}

func boolWord(b bool) [32]byte {
	var w [32]byte
	if b {
		w[31] = 1
	}
	return w
}

// encodeCall builds selector-prefixed calldata from 32-byte words.
func encodeCall(signature string, args ...[32]byte) []byte {
	data := make([]byte, 0, 4+len(args)*wordSize)
	data = append(data, selector(signature)...)
	for _, a := range args {
		data = append(data, a[:]...)
	}
	return data
}

func wordAt(data []byte, i int) ([]byte, error) {
	off := i * wordSize
	if off+wordSize > len(data) {
		return nil, fmt.Errorf("abi: short response, want word %d of %d bytes", i, len(data))
	}
	return data[off : off+wordSize], nil
}

func decodeBig(w []byte) *big.Int {
	return new(big.Int).SetBytes(w)
}

func decodeUint64(w []byte) (uint64, error) {
	v := decodeBig(w)
	if !v.IsUint64() {
		return 0, fmt.Errorf("abi: value %s overflows uint64", v)
	}
	return v.Uint64(), nil
}

func decodeBool(w []byte) (bool, error) {
	v := decodeBig(w)
	switch v.Uint64() {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("abi: invalid bool word")
}

func decodeAddress(w []byte) escrow.Address {
	return escrow.Address("0x" + hex.EncodeToString(w[12:32]))
}

// decodePayment unpacks getPayment's static 8-word tuple in field order:
// id, recipient, amount, releaseAt, claimed, requiresWorkEvent, stablecoin,
// preferredPayout.
func decodePayment(data []byte) (escrow.Payment, error) {
	var p escrow.Payment
	words := make([][]byte, 8)
	for i := range words {
		w, err := wordAt(data, i)
		if err != nil {
			return p, err
		}
		words[i] = w
	}

	var err error
	if p.ID, err = decodeUint64(words[0]); err != nil {
		return p, err
	}
	p.Recipient = decodeAddress(words[1])
	p.Amount = decodeBig(words[2])
	releaseAt, err := decodeUint64(words[3])
	if err != nil {
		return p, err
	}
	p.ReleaseAt = int64(releaseAt)
	if p.Claimed, err = decodeBool(words[4]); err != nil {
		return p, err
	}
	if p.RequiresWorkEvent, err = decodeBool(words[5]); err != nil {
		return p, err
	}
	p.Stablecoin = decodeAddress(words[6])
	p.PreferredPayout = decodeAddress(words[7])
	return p, nil
}

// decodeUint64Slice unpacks a dynamic uint256[] return value.
func decodeUint64Slice(data []byte) ([]uint64, error) {
	offWord, err := wordAt(data, 0)
	if err != nil {
		return nil, err
	}
	off, err := decodeUint64(offWord)
	if err != nil {
		return nil, err
	}
	if off%wordSize != 0 || int(off)+wordSize > len(data) {
		return nil, fmt.Errorf("abi: invalid array offset %d", off)
	}
	body := data[off:]
	n, err := decodeUint64(body[:wordSize])
	if err != nil {
		return nil, err
	}
	items := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		w, err := wordAt(body, int(i)+1)
		if err != nil {
			return nil, err
		}
		v, err := decodeUint64(w)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func hexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

func hexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
