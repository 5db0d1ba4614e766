package keys

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
	"github.com/ruteri/tee-secure-signer/interfaces"
)

// Strategy is one supported key type: its algorithm and its wire encoding.
type Strategy interface {
	Algorithm
	KeyType() interfaces.KeyType
	Encoding() interfaces.Encoding
	FormatPublicKey(publicKey []byte) interfaces.WireKey
	FormatSignature(signature []byte) interfaces.WireKey
}

type strategy struct {
	Algorithm
	keyType  interfaces.KeyType
	encoding interfaces.Encoding
}

// NewEd25519Strategy returns the ed25519 strategy with base58 wire encoding.
func NewEd25519Strategy() Strategy {
	return &strategy{Algorithm: Ed25519Algorithm{}, keyType: interfaces.KeyTypeEd25519, encoding: interfaces.EncodingBase58}
}

// NewSecp256k1Strategy returns the secp256k1 strategy with hex wire encoding.
func NewSecp256k1Strategy() Strategy {
	return &strategy{Algorithm: Secp256k1Algorithm{}, keyType: interfaces.KeyTypeSecp256k1, encoding: interfaces.EncodingHex}
}

func (s *strategy) KeyType() interfaces.KeyType    { return s.keyType }
func (s *strategy) Encoding() interfaces.Encoding { return s.encoding }

func (s *strategy) FormatPublicKey(publicKey []byte) interfaces.WireKey {
	return s.format(publicKey)
}

func (s *strategy) FormatSignature(signature []byte) interfaces.WireKey {
	return s.format(signature)
}

func (s *strategy) format(b []byte) interfaces.WireKey {
	return interfaces.WireKey{
		Bytes:    EncodeBytes(s.encoding, b),
		Encoding: s.encoding,
		KeyType:  s.keyType,
	}
}

// EncodeBytes encodes b in the given wire encoding. Unknown encodings fall back to hex.
func EncodeBytes(encoding interfaces.Encoding, b []byte) string {
	switch encoding {
	case interfaces.EncodingBase58:
		return base58.Encode(b)
	default:
		return hexutil.Encode(b)
	}
}

// DecodeWireKey returns the raw bytes of a wire-form key or signature.
func DecodeWireKey(k interfaces.WireKey) ([]byte, error) {
	switch k.Encoding {
	case interfaces.EncodingBase58:
		b, err := base58.Decode(k.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid base58: %w", err)
		}
		return b, nil
	case interfaces.EncodingHex:
		b, err := hexutil.Decode(k.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported wire encoding %q", k.Encoding)
	}
}
