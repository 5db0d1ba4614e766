// Package keys hides per-algorithm differences behind one contract so callers
// never branch on the key type.
//
// Three layers are provided:
//
// # Algorithm
//
// Per-curve primitives: derive a raw private key from a seed, derive the
// matching public key, produce a raw signature.
//
// # Strategy
//
// An Algorithm plus its wire encoding. ed25519 keys and signatures travel as
// base58, secp256k1 ones as 0x-prefixed hex.
//
// # Service
//
// A registry mapping KeyType to Strategy:
//
//	svc := keys.DefaultService()
//	pub, err := svc.PublicKeyFromSeed(interfaces.KeyTypeEd25519, seed)
//	res, err := svc.SignWithSeed(interfaces.KeyTypeSecp256k1, seed, digest)
//
// Adding a curve means adding one Strategy and registering it; nothing else changes.
package keys
