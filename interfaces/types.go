package interfaces

import (
	"fmt"
)

// AuthData identifies the calling tenant to the remote trust service.
// It is supplied per request and never persisted.
type AuthData struct {
	JWT    string `json:"jwt" validate:"required"`
	APIKey string `json:"apiKey" validate:"required"`
}

// KeyType selects the derivation and signing algorithm.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
)

// Validate reports whether the key type is one of the known algorithms.
func (kt KeyType) Validate() error {
	switch kt {
	case KeyTypeEd25519, KeyTypeSecp256k1:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKeyType, string(kt))
	}
}

// Encoding names a textual byte encoding.
type Encoding string

const (
	EncodingBase58 Encoding = "base58"
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
	EncodingUTF8   Encoding = "utf8"
)

// WireKey is the wire form of a public key or a signature.
type WireKey struct {
	Bytes    string   `json:"bytes"`
	Encoding Encoding `json:"encoding"`
	KeyType  KeyType  `json:"keyType"`
}

// AuthShare is the trust-service half of a signer's secret split.
// AuthKeyShare and DeviceKeyShareHash are standard base64.
type AuthShare struct {
	AuthKeyShare       string `json:"authKeyShare"`
	DeviceKeyShareHash string `json:"deviceKeyShareHash"`
	SignerID           string `json:"signerId"`
}

// Shares carries both halves of a freshly split secret, standard base64 encoded.
type Shares struct {
	Device string `json:"device"`
	Auth   string `json:"auth"`
}

// CreateSignerParams starts onboarding of a new signer.
type CreateSignerParams struct {
	AuthID  string  `json:"authId" validate:"required"`
	KeyType KeyType `json:"keyType" validate:"required,oneof=ed25519 secp256k1"`
}

// OTPParams carries the plaintext one-time code.
type OTPParams struct {
	OTP string `json:"otp"`
}

// OTPResult is returned by the trust service once the one-time code is accepted.
type OTPResult struct {
	SignerID string `json:"signerId"`
	Shares   Shares `json:"shares"`
}
