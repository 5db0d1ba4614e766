// Package common holds build metadata and logger setup shared by the binaries.
package common

var (
	// Version is set at build time with -ldflags "-X github.com/ruteri/tee-secure-signer/common.Version=...".
	Version = "dev"

	PackageName = "github.com/ruteri/tee-secure-signer"
)
