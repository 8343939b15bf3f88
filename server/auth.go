package server

import (
	"crypto/sha1"
	"time"

	"github.com/little-pan/sqlite-server/wire"
)

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// minPositive returns the smallest strictly-positive duration among ds,
// or 0 if none are positive (spec §4.5 step 1's idleCheckInterval rule:
// "-1 (disabled) if all are ≤ 0", represented here by the zero value
// since a zero interval already disables the sweep in Worker.Run).
func minPositive(ds ...time.Duration) time.Duration {
	var min time.Duration
	for _, d := range ds {
		if d <= 0 {
			continue
		}
		if min == 0 || d < min {
			min = d
		}
	}
	return min
}

// verifySignature checks the client's login signature against the
// stored password hash and the per-connection challenge seed, using a
// scramble-response scheme in the shape of the frontend protocol this
// server impersonates: SHA1(password) XOR SHA1(seed + SHA1(SHA1(password))).
// The exact primitive is out of scope per spec §4.4 ("signature
// validation exact primitive out-of-scope"); this is one concrete,
// testable choice.
func verifySignature(storedPasswordHash string, seed [wire.ChallengeSeedLen]byte, signature [wire.ChallengeSeedLen]byte) bool {
	expected := scramble(storedPasswordHash, seed)
	return constantTimeEqual(expected[:], signature[:])
}

func scramble(storedPasswordHash string, seed [wire.ChallengeSeedLen]byte) [sha1.Size]byte {
	stage1 := sha1.Sum([]byte(storedPasswordHash))
	stage2 := sha1.Sum(stage1[:])
	mixed := append(append([]byte{}, seed[:]...), stage2[:]...)
	hashed := sha1.Sum(mixed)

	var result [sha1.Size]byte
	for i := range result {
		result[i] = stage1[i] ^ hashed[i]
	}
	return result
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
