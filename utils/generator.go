package utils

import (
	"math/rand"
	"sync"
	"time"
)

const referenceLength = 12
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	refMu   sync.Mutex
	refRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NewPaymentReference generates the client-side idempotency key sent to a
// payment rail. Uniqueness is ultimately enforced by the database index on
// payments.reference.
func NewPaymentReference() string {
	refMu.Lock()
	defer refMu.Unlock()

	b := make([]byte, referenceLength)
	for i := range b {
		b[i] = letterBytes[refRand.Intn(len(letterBytes))]
	}
	return "BKP-" + string(b)
}
