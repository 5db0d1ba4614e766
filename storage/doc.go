// Package storage provides the local key-value stores holding signer state.
//
// The signer persists exactly two kinds of entries:
//
//	device-id                  device-global identifier (DeviceIDKey)
//	device-share-<signerId>    one device share per signer (DeviceShareKey)
//
// Backends implement interfaces.KVStore and are selected by URI:
//
//   - memory:// - in-process map, lost on restart
//   - file:///path?passphrase_env=VAR - one file per key, optionally sealed at rest
//   - vault://host:port/mount/path?tls=false - HashiCorp Vault KV v2, token from VAULT_TOKEN
//   - s3://[ACCESS:SECRET@]bucket/prefix?region=us-east-1&endpoint=... - S3 or compatible
//
// A comma-separated list of URIs mirrors the signer state over all of them
// (MultiStore).
//
// All backends are safe for concurrent use, overwrite values in full on Put,
// and treat Delete of an absent key as a no-op.
package storage
