package keys

import (
	"fmt"

	"github.com/ruteri/tee-secure-signer/interfaces"
)

// SignResult is a signature together with the public key that verifies it.
type SignResult struct {
	Signature interfaces.WireKey `json:"signature"`
	PublicKey interfaces.WireKey `json:"publicKey"`
}

// Service dispatches algorithm-agnostic operations to the registered strategies.
// It is immutable after construction and safe for concurrent use.
type Service struct {
	strategies map[interfaces.KeyType]Strategy
}

// NewService registers the given strategies. A later strategy for the same key
// type replaces an earlier one.
func NewService(strategies ...Strategy) *Service {
	s := &Service{strategies: make(map[interfaces.KeyType]Strategy, len(strategies))}
	for _, st := range strategies {
		s.strategies[st.KeyType()] = st
	}
	return s
}

// DefaultService registers ed25519 and secp256k1.
func DefaultService() *Service {
	return NewService(NewEd25519Strategy(), NewSecp256k1Strategy())
}

// Strategy returns the strategy for kt or ErrUnsupportedKeyType.
func (s *Service) Strategy(kt interfaces.KeyType) (Strategy, error) {
	st, found := s.strategies[kt]
	if !found {
		return nil, fmt.Errorf("%w: %q", interfaces.ErrUnsupportedKeyType, string(kt))
	}
	return st, nil
}

// PrivateKeyFromSeed derives the raw private key of kt from seed.
func (s *Service) PrivateKeyFromSeed(kt interfaces.KeyType, seed []byte) ([]byte, error) {
	st, err := s.Strategy(kt)
	if err != nil {
		return nil, err
	}
	return st.PrivateKeyFromSeed(seed)
}

// PublicKeyFromSeed derives the private key, its public key, and formats the latter.
func (s *Service) PublicKeyFromSeed(kt interfaces.KeyType, seed []byte) (interfaces.WireKey, error) {
	st, err := s.Strategy(kt)
	if err != nil {
		return interfaces.WireKey{}, err
	}

	privateKey, err := st.PrivateKeyFromSeed(seed)
	if err != nil {
		return interfaces.WireKey{}, fmt.Errorf("could not derive %s private key: %w", kt, err)
	}
	defer wipeBytes(privateKey)

	publicKey, err := st.PublicKey(privateKey)
	if err != nil {
		return interfaces.WireKey{}, fmt.Errorf("could not derive %s public key: %w", kt, err)
	}
	return st.FormatPublicKey(publicKey), nil
}

// RawPublicKeyFromSeed is PublicKeyFromSeed without the wire formatting.
func (s *Service) RawPublicKeyFromSeed(kt interfaces.KeyType, seed []byte) ([]byte, error) {
	st, err := s.Strategy(kt)
	if err != nil {
		return nil, err
	}
	privateKey, err := st.PrivateKeyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("could not derive %s private key: %w", kt, err)
	}
	defer wipeBytes(privateKey)
	return st.PublicKey(privateKey)
}

// Sign signs message with privateKey. For secp256k1 the message must be a 32-byte digest.
func (s *Service) Sign(kt interfaces.KeyType, privateKey []byte, message []byte) (*SignResult, error) {
	st, err := s.Strategy(kt)
	if err != nil {
		return nil, err
	}

	publicKey, err := st.PublicKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("could not derive %s public key: %w", kt, err)
	}

	signature, err := st.Sign(privateKey, message)
	if err != nil {
		return nil, err
	}

	return &SignResult{
		Signature: st.FormatSignature(signature),
		PublicKey: st.FormatPublicKey(publicKey),
	}, nil
}

// SignWithSeed derives the private key of kt from seed, signs, and wipes the key.
func (s *Service) SignWithSeed(kt interfaces.KeyType, seed []byte, message []byte) (*SignResult, error) {
	privateKey, err := s.PrivateKeyFromSeed(kt, seed)
	if err != nil {
		return nil, err
	}
	defer wipeBytes(privateKey)
	return s.Sign(kt, privateKey, message)
}

func wipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
