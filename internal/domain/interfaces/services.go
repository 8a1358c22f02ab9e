package interfaces

import (
	"context"

	domaintypes "conclave/internal/domain/types"
)

// TrustStore keeps per-fingerprint verification state.
type TrustStore interface {
	SetVerified(petname domaintypes.Petname, fp domaintypes.Fingerprint, verified bool) error
	IsVerified(petname domaintypes.Petname, fp domaintypes.Fingerprint) (bool, error)
	SaveFingerprint(petname domaintypes.Petname, fp domaintypes.Fingerprint) error
	Petname(fp domaintypes.Fingerprint) (domaintypes.Petname, bool, error)
	AllFingerprints() ([]domaintypes.Fingerprint, error)

	// Subscribe registers fn for verification flips and returns a cancel func.
	Subscribe(fn func(domaintypes.Fingerprint)) (cancel func())
}

// KeyManager owns the long-term account key pairs.
type KeyManager interface {
	Load(
		account domaintypes.AccountID,
		variant domaintypes.KeyVariant,
	) (domaintypes.KeyPair, bool, error)
	Generate(
		account domaintypes.AccountID,
		variant domaintypes.KeyVariant,
	) (domaintypes.KeyPair, error)
	MigrateLegacyThenLoad(account domaintypes.AccountID) (domaintypes.KeyPair, bool, error)
	LocalFingerprint(
		account domaintypes.AccountID,
		variant domaintypes.KeyVariant,
	) (domaintypes.Fingerprint, bool, error)
}

// KeyLoadResult is delivered by asynchronous key loads.
type KeyLoadResult struct {
	Pair  domaintypes.KeyPair
	Found bool
	Err   error
}

// AsyncKeyLoader loads key material off the event-delivery goroutine.
type AsyncKeyLoader interface {
	LoadAsync(
		ctx context.Context,
		account domaintypes.AccountID,
		variant domaintypes.KeyVariant,
	) <-chan KeyLoadResult
}
