package sharding

import (
	"github.com/ruteri/tee-secure-signer/interfaces"
)

// Outcome discriminates the result of a reconstruction.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotOnboarded
	OutcomeTampered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotOnboarded:
		return "not-onboarded"
	case OutcomeTampered:
		return "tampered"
	default:
		return "unknown"
	}
}

// TamperDetails carries diagnostics of a hash mismatch. No share material is included.
type TamperDetails struct {
	SignerID     string
	ObservedHash string
	ExpectedHash string
}

// Reconstruction is the result of Service.Reconstruct.
type Reconstruction struct {
	Outcome  Outcome
	SignerID string

	// Secret is set only for OutcomeOK. Callers wipe it with Wipe when done.
	Secret []byte

	// Tamper is set only for OutcomeTampered.
	Tamper *TamperDetails
}

// Err converts non-OK outcomes into the errors surfaced to the host application:
// ErrNotOnboarded and the invalid-device-share CodedError.
func (r Reconstruction) Err() error {
	switch r.Outcome {
	case OutcomeOK:
		return nil
	case OutcomeNotOnboarded:
		return interfaces.ErrNotOnboarded
	case OutcomeTampered:
		return interfaces.NewInvalidDeviceShareError(r.Tamper.ObservedHash, r.Tamper.ExpectedHash)
	default:
		return interfaces.ErrNotOnboarded
	}
}

// Wipe zeroes the master secret.
func (r *Reconstruction) Wipe() {
	for i := range r.Secret {
		r.Secret[i] = 0
	}
	r.Secret = nil
}
