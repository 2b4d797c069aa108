// Package guid generates short, time-ordered, unique string identifiers.
// They are used to name scratch workspaces, so lexical sort order matching
// creation order is handy, and filesystem-safe characters are required.
package guid

import (
	"crypto/rand"
	"encoding/base32"
	"time"
)

const size = 20

var encoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// New returns a fresh identifier: a millisecond timestamp prefix so ids
// sort by creation time, followed by random bits for uniqueness.
func New() string {
	var raw [12]byte
	ms := uint64(time.Now().UnixNano() / int64(time.Millisecond))
	for i := 5; i >= 0; i-- {
		raw[i] = byte(ms)
		ms >>= 8
	}
	if _, err := rand.Read(raw[6:]); err != nil {
		panic(err)
	}
	return encoding.EncodeToString(raw[:]) // 12 bytes -> exactly `size` chars.
}
