package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Digest is the incremental integrity accumulator for one transfer.
// Both sides feed it exactly the bytes that crossed the wire, in wire
// order, so equal transfers always produce equal digests. Each session
// owns its Digest; it is never shared across streams.
type Digest struct {
	h hash.Hash
	n uint64
}

// NewDigest returns a fresh SHA-256 accumulator.
func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

// Write feeds p into the accumulator. It never fails.
func (d *Digest) Write(p []byte) (int, error) {
	d.h.Write(p)
	d.n += uint64(len(p))
	return len(p), nil
}

// Bytes returns how many bytes have been accumulated.
func (d *Digest) Bytes() uint64 {
	return d.n
}

// Sum returns the 64-character lowercase hex digest of everything
// written so far. The accumulator stays usable afterwards.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
