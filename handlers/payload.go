package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/ruteri/tee-secure-signer/interfaces"
)

// decodePayload returns the raw bytes of a sign payload. Hex may be given with
// or without the 0x prefix.
func decodePayload(encoding interfaces.Encoding, payload string) ([]byte, error) {
	switch encoding {
	case "", interfaces.EncodingUTF8:
		return []byte(payload), nil
	case interfaces.EncodingHex:
		if !strings.HasPrefix(payload, "0x") && !strings.HasPrefix(payload, "0X") {
			payload = "0x" + payload
		}
		b, err := hexutil.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return b, nil
	case interfaces.EncodingBase58:
		b, err := base58.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 payload: %w", err)
		}
		return b, nil
	case interfaces.EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported payload encoding %q", encoding)
	}
}

// signingInput prepares msg for the key type. ed25519 signs the message
// itself; secp256k1 signs a 32-byte digest.
func signingInput(kt interfaces.KeyType, hash string, msg []byte) ([]byte, error) {
	if kt != interfaces.KeyTypeSecp256k1 {
		if hash != "" && hash != HashNone {
			return nil, fmt.Errorf("hash %q is not supported for %s", hash, kt)
		}
		return msg, nil
	}

	switch hash {
	case "", HashKeccak256:
		return crypto.Keccak256(msg), nil
	case HashSHA256:
		digest := sha256.Sum256(msg)
		return digest[:], nil
	case HashNone:
		if len(msg) != 32 {
			return nil, fmt.Errorf("payload must be a 32-byte digest when hash is %q, got %d bytes", HashNone, len(msg))
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("unsupported hash %q", hash)
	}
}
