package inventory

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randBase36(n int) string {
	max := big.NewInt(int64(len(base36)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(err)
		}
		b[i] = base36[v.Int64()]
	}
	return string(b)
}

// NewBatchID generates a batch identifier of the form
// BATCH-<epoch-millis>-<6 random base36 chars>.
func NewBatchID() string {
	return fmt.Sprintf("BATCH-%d-%s", time.Now().UnixMilli(), randBase36(6))
}

// NewTrackingNumber generates a tracking number of the form
// TRK<epoch-millis><9 random base36 chars>.
func NewTrackingNumber() string {
	return fmt.Sprintf("TRK%d%s", time.Now().UnixMilli(), randBase36(9))
}
