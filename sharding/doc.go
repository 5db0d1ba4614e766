// Package sharding reconstructs a signer's master secret from its two shares
// while defending against tampering and cross-signer leakage.
//
// # Shares
//
// The master secret is split 2-of-2 with Shamir's Secret Sharing
// (github.com/hashicorp/vault/shamir). The device share is stored locally under
// device-share-<signerId>; the auth share is held by the remote trust service
// together with the SHA-256 hash of the device share it expects.
//
// # Reconstruction
//
// Reconstruct fetches the auth share, loads the device share, checks the hash
// and combines the shares. The result is a Reconstruction whose Outcome is one of:
//
//   - OutcomeOK: Secret holds the 32-byte master secret
//   - OutcomeNotOnboarded: either share is missing, nothing was combined
//   - OutcomeTampered: the device share hash did not match; local state was destroyed
//
// Any other failure, including a combine failure on matching hashes, is
// returned as an error.
//
// # Tamper Response
//
// On hash mismatch the device share and then the device id are deleted. The
// auth share is never retained past the reconstruction that fetched it. Each
// deletion is attempted regardless of the other and deleting an absent key is
// a no-op, so repeating the cleanup is safe.
// The device must onboard again afterwards.
package sharding
