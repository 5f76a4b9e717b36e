package escrow

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// AttestationDigest builds the digest the ledger recovers when checking a
// work-completion signature: keccak-256 over the packed tuple
// (recipient ‖ paymentID ‖ employer), with the id widened to a 32-byte
// big-endian word. The field order is load-bearing; changing any one field
// changes the digest, which is what prevents replay across payments,
// recipients, or employers.
func AttestationDigest(recipient Address, paymentID uint64, employer Address) ([32]byte, error) {
	var digest [32]byte

	rb, err := recipient.Bytes()
	if err != nil {
		return digest, err
	}
	eb, err := employer.Bytes()
	if err != nil {
		return digest, err
	}

	packed := make([]byte, 0, 20+32+20)
	packed = append(packed, rb[:]...)
	var id [32]byte
	binary.BigEndian.PutUint64(id[24:], paymentID)
	packed = append(packed, id[:]...)
	packed = append(packed, eb[:]...)

	h := sha3.NewLegacyKeccak256()
	h.Write(packed)
	h.Sum(digest[:0])
	return digest, nil
}
