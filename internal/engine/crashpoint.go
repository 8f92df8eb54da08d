package engine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// payoutK tunes the crash distribution: m = payoutK/(u*(1-edge)) + 1 for
// u ~ Uniform(0,1). Heavy-tailed, mostly-low outcomes; with the (1-edge)
// term the expected payout ratio stays strictly below 1.
const payoutK = 0.46

// Generator produces the pre-committed crash multiplier for a round.
// The multiplier is derived deterministically from a per-round server
// seed, so publishing the seed's hash before the round and the seed
// itself after the crash lets anyone verify the outcome was fixed up
// front and not steered mid-round.
type Generator struct {
	HouseEdge       float64
	InstantBustProb float64
	Min             float64
	Max             float64
}

// NewServerSeed returns a fresh 32-byte seed as hex, from the CSPRNG.
func NewServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SeedHash is the public commitment for a server seed.
func SeedHash(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// deriveFloat maps (seed, label) to a uniform float in [0,1) via
// HMAC-SHA256, using the top 53 bits of the digest.
func deriveFloat(seed, label string) float64 {
	mac := hmac.New(sha256.New, []byte(seed))
	mac.Write([]byte(label))
	sum := mac.Sum(nil)
	u := binary.BigEndian.Uint64(sum[:8]) >> 11
	return float64(u) / float64(1<<53)
}

// CrashPoint computes the crash multiplier for a round. With probability
// InstantBustProb the round busts instantly at Min; otherwise the
// multiplier follows the inverse-CDF of a Pareto-like distribution with
// the house edge built in. Always within [Min, Max].
func (g Generator) CrashPoint(seed, roundID string) float64 {
	if deriveFloat(seed, roundID+"|bust") < g.InstantBustProb {
		return g.Min
	}
	u := deriveFloat(seed, roundID+"|point")
	if u <= 0 {
		// 0 would mean an infinite multiplier; push it to the far tail
		// and let the clamp cap it.
		u = 1.0 / float64(1<<53)
	}
	m := payoutK/(u*(1-g.HouseEdge)) + 1
	return Curve{Min: g.Min, Max: g.Max}.Clamp(m)
}

// VerifyCrashPoint recomputes the multiplier a revealed seed commits to.
// Players use this together with the pre-round SeedHash to check a round
// after the fact.
func (g Generator) VerifyCrashPoint(seed, roundID string) float64 {
	return g.CrashPoint(seed, roundID)
}
