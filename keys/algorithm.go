package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Algorithm provides the raw primitives of one signature scheme.
type Algorithm interface {
	// PrivateKeyFromSeed deterministically derives a private key from a seed.
	PrivateKeyFromSeed(seed []byte) ([]byte, error)
	PublicKey(privateKey []byte) ([]byte, error)
	Sign(privateKey []byte, payload []byte) ([]byte, error)
	Verify(publicKey []byte, payload []byte, signature []byte) bool
}

// Ed25519Algorithm signs payloads directly with ed25519.
type Ed25519Algorithm struct{}

// PrivateKeyFromSeed returns the 32-byte ed25519 seed form of the private key.
func (Ed25519Algorithm) PrivateKeyFromSeed(seed []byte) ([]byte, error) {
	if len(seed) < ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be at least %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	privateKey := make([]byte, ed25519.SeedSize)
	copy(privateKey, seed[:ed25519.SeedSize])
	return privateKey, nil
}

// PublicKey accepts the 32-byte seed form and the legacy 64-byte expanded form.
func (a Ed25519Algorithm) PublicKey(privateKey []byte) ([]byte, error) {
	key, err := a.expand(privateKey)
	if err != nil {
		return nil, err
	}
	return []byte(key.Public().(ed25519.PublicKey)), nil
}

func (a Ed25519Algorithm) Sign(privateKey []byte, payload []byte) ([]byte, error) {
	key, err := a.expand(privateKey)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(key, payload), nil
}

func (Ed25519Algorithm) Verify(publicKey []byte, payload []byte, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, payload, signature)
}

func (Ed25519Algorithm) expand(privateKey []byte) (ed25519.PrivateKey, error) {
	switch len(privateKey) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(privateKey), nil
	case ed25519.PrivateKeySize:
		// The public half in the tail is ignored and re-derived from the seed.
		return ed25519.NewKeyFromSeed(privateKey[:ed25519.SeedSize]), nil
	default:
		return nil, fmt.Errorf("invalid ed25519 private key length: expected %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(privateKey))
	}
}

// secp256k1DerivationTag separates secp256k1 key derivation from other uses of the seed.
var secp256k1DerivationTag = []byte("secp256k1-key-derivation")

// maxDerivationRounds bounds the re-hash loop. A candidate falls outside the
// scalar range with probability ~2^-128, so hitting the cap means a bug.
const maxDerivationRounds = 256

var ErrDerivationExhausted = errors.New("secp256k1 key derivation exceeded iteration cap")

// Secp256k1Algorithm signs 32-byte digests with ECDSA over secp256k1.
type Secp256k1Algorithm struct{}

// PrivateKeyFromSeed computes SHA-256(seed || tag) and re-hashes until the
// candidate is a valid curve scalar.
func (Secp256k1Algorithm) PrivateKeyFromSeed(seed []byte) ([]byte, error) {
	if len(seed) == 0 {
		return nil, errors.New("secp256k1 seed must not be empty")
	}

	h := sha256.New()
	h.Write(seed)
	h.Write(secp256k1DerivationTag)
	candidate := h.Sum(nil)

	for i := 0; i < maxDerivationRounds; i++ {
		if _, err := crypto.ToECDSA(candidate); err == nil {
			return candidate, nil
		}
		next := sha256.Sum256(candidate)
		candidate = next[:]
	}
	return nil, ErrDerivationExhausted
}

// PublicKey returns the 65-byte uncompressed point encoding.
func (Secp256k1Algorithm) PublicKey(privateKey []byte) ([]byte, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 private key: %w", err)
	}
	return crypto.FromECDSAPub(&key.PublicKey), nil
}

// Sign returns the 64-byte compact r||s signature over a 32-byte digest.
func (Secp256k1Algorithm) Sign(privateKey []byte, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("secp256k1 payload must be a 32-byte digest, got %d bytes", len(digest))
	}
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 private key: %w", err)
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("secp256k1 signing failed: %w", err)
	}
	return sig[:64], nil
}

func (Secp256k1Algorithm) Verify(publicKey []byte, digest []byte, signature []byte) bool {
	if len(signature) == 65 {
		signature = signature[:64]
	}
	if len(signature) != 64 || len(digest) != 32 {
		return false
	}
	return crypto.VerifySignature(publicKey, digest, signature)
}
