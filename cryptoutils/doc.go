// Package cryptoutils provides at-rest protection for locally stored signer state.
//
// Sealer encrypts values with AES-256-GCM under a key derived with argon2id from
// an operator-supplied passphrase and a per-store salt. The storage key name is
// bound as additional data, so a sealed device share cannot be replayed under
// another signer's key.
package cryptoutils
