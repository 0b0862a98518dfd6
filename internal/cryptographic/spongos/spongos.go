// Package spongos wraps a STROBE duplex sponge with the absorb/squeeze
// surface the frame codec needs. Wrap and unwrap sides must issue the same
// operation sequence with the same inputs to stay synchronized; any
// divergence shows up as a mismatched squeeze downstream.
package spongos

import (
	"crypto/hmac"

	"github.com/sammyne/strobe"
)

// MacSize is the default authenticator tag length in bytes.
const MacSize = 32

// HashSize is the length of squeezed message hashes used for signing.
const HashSize = 64

type Spongos struct {
	s *strobe.Strobe
}

// New creates a sponge bound to a protocol domain string. The domain
// separates unrelated uses (framing, link derivation, exports) from each
// other.
func New(domain string) *Spongos {
	s, err := strobe.New(domain, strobe.Bit256)
	if err != nil {
		panic(err)
	}
	return &Spongos{s: s}
}

// commitMark is absorbed by Commit as an explicit operation boundary.
var commitMark = []byte{0xc0}

// Absorb feeds data into the sponge state. Empty input is a no-op on both
// wrap and unwrap sides, so states stay synchronized.
func (sp *Spongos) Absorb(data []byte) {
	if len(data) == 0 {
		return
	}
	if err := sp.s.AD(data, &strobe.Options{}); err != nil {
		panic(err)
	}
}

// AbsorbMeta feeds framing metadata into the sponge, domain-separated from
// regular absorbed data.
func (sp *Spongos) AbsorbMeta(data []byte) {
	if len(data) == 0 {
		return
	}
	if err := sp.s.AD(data, &strobe.Options{Meta: true}); err != nil {
		panic(err)
	}
}

// AbsorbKey feeds key material into the sponge. Key material is absorbed on
// the metadata track so it can never collide with wire data.
func (sp *Spongos) AbsorbKey(key []byte) {
	if len(key) == 0 {
		return
	}
	if err := sp.s.AD(key, &strobe.Options{Meta: true}); err != nil {
		panic(err)
	}
}

// Commit closes the current operation so the next squeeze starts from a
// clean permutation boundary.
func (sp *Spongos) Commit() {
	if err := sp.s.AD(commitMark, &strobe.Options{Meta: true}); err != nil {
		panic(err)
	}
}

// SqueezeInto fills dst with sponge output, advancing the state.
func (sp *Spongos) SqueezeInto(dst []byte) {
	if len(dst) == 0 {
		return
	}
	if err := sp.s.SendMAC(dst, &strobe.Options{}); err != nil {
		panic(err)
	}
}

// Squeeze returns n bytes of sponge output, advancing the state.
func (sp *Spongos) Squeeze(n int) []byte {
	out := make([]byte, n)
	sp.SqueezeInto(out)
	return out
}

// SqueezeEq squeezes len(tag) bytes and compares them with tag in constant
// time. The state advances the same way on both outcomes.
func (sp *Spongos) SqueezeEq(tag []byte) bool {
	return hmac.Equal(sp.Squeeze(len(tag)), tag)
}

// Mask encrypts src into dst under the current state: a squeezed pad is
// XORed over the plaintext and the produced ciphertext is absorbed back, so
// masking is self-synchronizing between wrap and unwrap. dst and src may
// alias.
func (sp *Spongos) Mask(dst, src []byte) {
	if len(src) == 0 {
		return
	}
	pad := sp.Squeeze(len(src))
	for i := range src {
		dst[i] = src[i] ^ pad[i]
	}
	sp.Absorb(dst[:len(src)])
}

// Unmask reverses Mask: the same pad is squeezed, the ciphertext absorbed,
// and the plaintext recovered. dst and src may alias.
func (sp *Spongos) Unmask(dst, src []byte) {
	if len(src) == 0 {
		return
	}
	pad := sp.Squeeze(len(src))
	ct := make([]byte, len(src))
	copy(ct, src)
	for i := range ct {
		dst[i] = ct[i] ^ pad[i]
	}
	sp.Absorb(ct)
}

// Fork clones the sponge state for a branch whose operations must not
// disturb the trunk (per-recipient key wrapping and the like).
func (sp *Spongos) Fork() *Spongos {
	return &Spongos{s: sp.s.Clone()}
}
