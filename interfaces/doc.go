// Package interfaces defines the data model and collaborator contracts shared by
// the secure signer packages, separating interface definitions from implementations.
//
// # Data Model
//
//   - AuthData: per-request credentials identifying the calling tenant
//   - KeyType: algorithm selector (ed25519, secp256k1)
//   - WireKey: the only representation of a public key or signature that leaves the signer
//   - AuthShare: the service-held half of a signer's 2-of-2 split, with the expected device share hash
//
// # Collaborator Interfaces
//
// TrustService: the remote trust service that holds auth shares and onboards signers.
//
// OTPDecrypter: format-preserving decryption of one-time codes, backed by the
// attested-encryption layer.
//
// KVStore: the local key-value store holding the device identifier and the
// signer-namespaced device shares.
//
// # Errors
//
// Sentinel errors are compared with errors.Is. Conditions the host application
// must tell apart (tampering, missing onboarding) are carried by CodedError.
package interfaces
