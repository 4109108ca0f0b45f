// Package crypto implements the AEAD seal/open contract for relaygram
// frames: ChaCha20-Poly1305 with a monotonic nonce counter that is carried
// on the wire in cleartext so the peer can reconstruct it symmetrically.
//
// The reference implementation this was distilled from (original_source's
// EncryptionManager) derives the seal nonce from a counter but opens with a
// constant all-zero nonce, which can never authenticate a non-first frame.
// This package fixes that by encoding the counter on the wire (8 bytes,
// cleartext, prepended to the ciphertext) and deriving the open
// nonce from it exactly as Seal derived it.
package crypto

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the ChaCha20-Poly1305 key size in bytes (256 bits).
const KeySize = chacha20poly1305.KeySize

// NonceSize is the AEAD nonce size in bytes (96 bits). The counter the nonce
// is derived from travels on the wire as 8 bytes, not NonceSize.
const NonceSize = chacha20poly1305.NonceSize

// ReplayWindow bounds how far behind the highest accepted counter a new
// counter may be before it is treated as a replay and rejected.
const ReplayWindow = 256

// ErrAuthFailed is returned by Open when the AEAD tag does not verify, the
// buffer is too short to contain a tag, or the counter is outside the
// replay window.
var ErrAuthFailed = errors.New("crypto: authentication failed")

// Manager holds one direction-agnostic AEAD key and the strictly
// increasing nonce counter used to seal outbound frames, plus the
// highest counter accepted from the peer for replay rejection.
type Manager struct {
	aead cipherAEAD

	sendCounter uint64

	highestRecvCounter uint64
	haveRecvCounter     bool

	log *zap.Logger
}

// cipherAEAD is the minimal surface of cipher.AEAD this package needs;
// named so tests can substitute a fake without importing crypto/cipher.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	Overhead() int
}

// New generates a fresh random 256-bit key from the OS CSPRNG and returns a
// Manager ready to seal/open. Real interop deployments provision keys
// out-of-band via FromKey instead.
func New(log *zap.Logger) (*Manager, error) {
	var key [KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, errors.Wrap(err, "crypto: generate key")
	}
	return FromKey(key[:], log)
}

// FromKey builds a Manager from externally provisioned key material.
func FromKey(key []byte, log *zap.Logger) (*Manager, error) {
	if len(key) != KeySize {
		return nil, errors.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: build AEAD")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{aead: aead, log: log}, nil
}

// deriveNonce reproduces the reference layout: a 12-byte nonce where the
// low 40 bits hold the big-endian counter and the rest is zero. Any layout
// is valid as long as both peers use the same one and it never repeats for
// a given key; this one keeps the counter visible on the wire for replay
// checks without widening the AEAD nonce.
func deriveNonce(counter uint64) [NonceSize]byte {
	var nonce [NonceSize]byte
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)
	copy(nonce[4:12], counterBytes[3:8])
	return nonce
}

// Overhead returns how many bytes Seal adds beyond the plaintext length:
// the 8-byte cleartext counter plus the AEAD tag.
func (m *Manager) Overhead() int {
	return 8 + m.aead.Overhead()
}

// Seal encrypts plaintext under the next nonce and returns
// counter(8 bytes, cleartext) || ciphertext-with-tag. The counter is
// incremented unconditionally, including on a caller that never transmits
// the result, preserving the never-reuse invariant.
func (m *Manager) Seal(plaintext []byte) []byte {
	counter := m.sendCounter
	m.sendCounter++

	nonce := deriveNonce(counter)
	sealed := m.aead.Seal(nil, nonce[:], plaintext, nil)

	out := make([]byte, 8+len(sealed))
	binary.BigEndian.PutUint64(out[0:8], counter)
	copy(out[8:], sealed)
	return out
}

// Open splits the wire-carried counter from data, rejects replays outside
// ReplayWindow, reconstructs the nonce exactly as Seal derived it, and
// authenticates. Returns ErrAuthFailed (never a lower-level cipher error)
// on any failure so the caller can apply a uniform drop-and-log policy.
func (m *Manager) Open(data []byte) ([]byte, error) {
	if len(data) < 8+chacha20poly1305.Overhead {
		return nil, ErrAuthFailed
	}

	counter := binary.BigEndian.Uint64(data[0:8])
	ciphertext := data[8:]

	if m.haveRecvCounter && counter+ReplayWindow <= m.highestRecvCounter {
		m.log.Warn("crypto: rejecting counter outside replay window",
			zap.Uint64("counter", counter), zap.Uint64("highest", m.highestRecvCounter))
		return nil, ErrAuthFailed
	}

	nonce := deriveNonce(counter)
	plaintext, err := m.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	if !m.haveRecvCounter || counter > m.highestRecvCounter {
		m.highestRecvCounter = counter
		m.haveRecvCounter = true
	}
	return plaintext, nil
}
