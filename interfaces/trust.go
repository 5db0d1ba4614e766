package interfaces

import "context"

// TrustService is the remote service holding auth shares.
type TrustService interface {
	// GetAuthShare returns the auth share registered for the device and tenant.
	// A nil share with a nil error means the signer has not been onboarded yet.
	GetAuthShare(ctx context.Context, deviceID string, auth AuthData) (*AuthShare, error)

	// CreateSigner begins onboarding; the service answers by sending a one-time code.
	CreateSigner(ctx context.Context, deviceID string, auth AuthData, params CreateSignerParams) error

	// SendOTP submits the one-time code and receives a fresh split.
	SendOTP(ctx context.Context, deviceID string, auth AuthData, params OTPParams) (*OTPResult, error)
}

// OTPDecrypter decrypts a one-time code delivered as an encrypted digit sequence.
type OTPDecrypter interface {
	Decrypt(ctx context.Context, digits []int) ([]int, error)
}
