package storage

import (
	"errors"
	"strings"
)

// DeviceIDKey holds the device identifier. It is shared by all signers on the device.
const DeviceIDKey = "device-id"

const deviceSharePrefix = "device-share-"

// ErrInvalidSignerID is returned for signer ids that would escape their namespace.
var ErrInvalidSignerID = errors.New("invalid signer id")

// DeviceShareKey returns the key holding the device share of signerID.
func DeviceShareKey(signerID string) (string, error) {
	if err := ValidateSignerID(signerID); err != nil {
		return "", err
	}
	return deviceSharePrefix + signerID, nil
}

// ValidateSignerID rejects ids that could alias another key: empty ids and ids
// containing path separators.
func ValidateSignerID(signerID string) error {
	if signerID == "" || strings.ContainsAny(signerID, "/\\") || strings.Contains(signerID, "..") {
		return ErrInvalidSignerID
	}
	return nil
}
