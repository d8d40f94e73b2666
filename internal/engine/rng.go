// Package engine provides the random sources that drive slice selection and
// stop-angle jitter.
package engine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"strconv"
)

// Source yields uniformly distributed floats in [0, 1).
type Source interface {
	Float64() float64
}

// StreamSource is a deterministic Source. Block n of the stream is
// HMAC-SHA256(secret, "label:n"); each draw consumes 4 bytes, so one block
// yields 8 floats. The same secret and label always replay the same
// sequence. It is not safe for concurrent use.
type StreamSource struct {
	mac   hash.Hash
	label string
	block uint64
	buf   []byte
	draws uint64
}

// NewStreamSource starts a stream at block zero.
func NewStreamSource(secret, label string) *StreamSource {
	return &StreamSource{
		mac:   hmac.New(sha256.New, []byte(secret)),
		label: label,
	}
}

func (s *StreamSource) Float64() float64 {
	if len(s.buf) < 4 {
		s.refill()
	}
	f := unitFloat(s.buf[:4])
	s.buf = s.buf[4:]
	s.draws++
	return f
}

// Draws reports how many floats have been consumed.
func (s *StreamSource) Draws() uint64 { return s.draws }

func (s *StreamSource) refill() {
	s.mac.Reset()
	s.mac.Write(strconv.AppendUint([]byte(s.label+":"), s.block, 10))
	s.buf = s.mac.Sum(nil)
	s.block++
}

// unitFloat reads b as a big-endian uint32 scaled into [0, 1).
func unitFloat(b []byte) float64 {
	return float64(binary.BigEndian.Uint32(b)) / (1 << 32)
}

// CryptoSource reads 53 random bits per draw from crypto/rand.
type CryptoSource struct{}

func (CryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic(fmt.Sprintf("engine: crypto source: %v", err))
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

// NewSource returns a StreamSource for a non-empty seed and a CryptoSource
// otherwise. label separates streams that share a seed.
func NewSource(seed, label string) Source {
	if seed == "" {
		return CryptoSource{}
	}
	return NewStreamSource(seed, label)
}

// Uniform draws from [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}
