// Package ids mints write-intent identifiers. Every mutation the client
// submits is logged under one of these before it reaches the ledger, so ids
// must sort in mint order for the intent log to read chronologically.
package ids

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mintMu sync.Mutex
	mint   *ulid.MonotonicEntropy
)

func entropy() *ulid.MonotonicEntropy {
	if mint == nil {
		var seed [8]byte
		if _, err := cryptorand.Read(seed[:]); err != nil {
			binary.BigEndian.PutUint64(seed[:], uint64(time.Now().UnixNano()))
		}
		src := mathrand.NewSource(int64(binary.BigEndian.Uint64(seed[:])))
		mint = ulid.Monotonic(mathrand.New(src), 0)
	}
	return mint
}

// New mints a ULID for a write intent. Ids minted within the same
// millisecond still come out in mint order.
func New() string {
	mintMu.Lock()
	defer mintMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy()).String()
}
