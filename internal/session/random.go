package session

import (
	"crypto/rand"
	"math/big"
)

// IDSource generates the unguessable identifiers the gateway hands out.
type IDSource struct{}

func (s IDSource) randString(n int) string {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

	ret := make([]byte, n)
	for i := range n {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		ret[i] = letters[num.Int64()]
	}

	return string(ret)
}

func (s IDSource) State() string {
	return s.randString(64)
}

func (s IDSource) SessionID() string {
	return s.randString(32) // Entropy E = L * log2(63) = 32 * log2(63) = 191.3 bits
}
