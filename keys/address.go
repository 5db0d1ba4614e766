package keys

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthereumAddress returns the EIP-55 checksummed address of an uncompressed
// secp256k1 public key: the last 20 bytes of keccak256(pub[1:]).
func EthereumAddress(publicKey []byte) (string, error) {
	if len(publicKey) != 65 || publicKey[0] != 0x04 {
		return "", fmt.Errorf("expected 65-byte uncompressed public key, got %d bytes", len(publicKey))
	}
	hash := crypto.Keccak256(publicKey[1:])
	return common.BytesToAddress(hash[12:]).Hex(), nil
}
