package handlers

import (
	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/ruteri/tee-secure-signer/keys"
)

// Version is the only accepted envelope version.
const Version = 1

// Operation names.
const (
	OpCreateSigner = "create-signer"
	OpSendOTP      = "send-otp"
	OpGetPublicKey = "get-public-key"
	OpSign         = "sign"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is the envelope of every inbound event.
type Request[T any] struct {
	Version  int                  `json:"version"`
	AuthData *interfaces.AuthData `json:"authData,omitempty"`
	Data     T                    `json:"data"`
}

// Response is the envelope of every outbound event.
type Response struct {
	Status  string            `json:"status"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Onboarding states reported by create-signer.
const (
	SignerReady   = "ready"
	SignerOTPSent = "otp-sent"
)

type CreateSignerResult struct {
	Status   string `json:"status"`
	SignerID string `json:"signerId,omitempty"`
}

// SendOTPData carries the encrypted one-time code as a digit sequence.
type SendOTPData struct {
	EncryptedOTP []int              `json:"encryptedOtp" validate:"required,min=1,dive,min=0,max=9"`
	KeyType      interfaces.KeyType `json:"keyType" validate:"required,oneof=ed25519 secp256k1"`
}

type GetPublicKeyData struct {
	KeyType interfaces.KeyType `json:"keyType" validate:"required,oneof=ed25519 secp256k1"`
}

// PublicKeyResult is returned by send-otp and get-public-key. Address is set
// for secp256k1 only.
type PublicKeyResult struct {
	SignerID  string             `json:"signerId"`
	PublicKey interfaces.WireKey `json:"publicKey"`
	Address   string             `json:"address,omitempty"`
}

// Hash options for secp256k1 payloads.
const (
	HashKeccak256 = "keccak256"
	HashSHA256    = "sha256"
	HashNone      = "none"
)

// SignData is the sign payload. Encoding defaults to utf8; Hash applies to
// secp256k1 only and defaults to keccak256.
type SignData struct {
	KeyType  interfaces.KeyType  `json:"keyType" validate:"required,oneof=ed25519 secp256k1"`
	Payload  string              `json:"payload"`
	Encoding interfaces.Encoding `json:"encoding,omitempty" validate:"omitempty,oneof=hex base58 base64 utf8"`
	Hash     string              `json:"hash,omitempty" validate:"omitempty,oneof=keccak256 sha256 none"`
}

type SignResult = keys.SignResult
