package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by KVStore.Get for absent keys.
	ErrNotFound = errors.New("key not found")

	// ErrNotOnboarded means either share is missing; the signer must onboard first.
	ErrNotOnboarded = errors.New("signer not onboarded")

	// ErrUnsupportedKeyType is returned for key types without a registered strategy.
	ErrUnsupportedKeyType = errors.New("Unsupported key type")
)

// Error codes surfaced to the host application.
const (
	CodeInvalidDeviceShare = "invalid-device-share"
	CodeNotOnboarded       = "signer-not-onboarded"
)

// CodedError is an error the host application can branch on by Code.
type CodedError struct {
	Code    string
	Message string
	Details map[string]string
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any CodedError with the same code.
func (e *CodedError) Is(target error) bool {
	var other *CodedError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewInvalidDeviceShareError reports a device share whose hash does not match
// the hash registered with the trust service.
func NewInvalidDeviceShareError(observed, expected string) *CodedError {
	return &CodedError{
		Code:    CodeInvalidDeviceShare,
		Message: "device share hash does not match the registered hash",
		Details: map[string]string{
			"observedHash": observed,
			"expectedHash": expected,
		},
	}
}
