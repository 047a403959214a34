package tendermint

import (
	"bytes"
	"fmt"
	"time"

	cmtmath "github.com/cometbft/cometbft/libs/math"
	"github.com/cometbft/cometbft/light"
)

const (
	// TrustingPeriod bounds how old the trusted block may be.
	TrustingPeriod = 14 * 24 * time.Hour
	// verifySkew is added to the untrusted header's own timestamp to form
	// the verification instant, so freshly produced headers pass the
	// future-time check.
	verifySkew = 20 * time.Second
)

// TrustLevel is the fraction of trusted voting power that must have signed
// the untrusted header.
var TrustLevel = cmtmath.Fraction{Numerator: 2, Denominator: 3}

// VerifyHeader runs light-client verification from trusted to untrusted.
// The trusted block's announced next-validator-set hash is checked against
// the witnessed set first, so an outdated or forged trusted input cannot
// slip through. Any verdict other than success is fatal.
func VerifyHeader(trusted, untrusted LightBlock) error {
	if trusted.SignedHeader == nil || untrusted.SignedHeader == nil {
		return fmt.Errorf("light block witness is missing a signed header")
	}
	if trusted.NextValidators == nil || untrusted.Validators == nil {
		return fmt.Errorf("light block witness is missing a validator set")
	}

	if !bytes.Equal(trusted.SignedHeader.NextValidatorsHash, trusted.NextValidators.Hash()) {
		return fmt.Errorf(
			"trusted next validator set hash mismatch: header announces %X, witnessed set hashes to %X",
			trusted.SignedHeader.NextValidatorsHash, trusted.NextValidators.Hash(),
		)
	}

	verifyTime := untrusted.SignedHeader.Time.Add(verifySkew)
	if err := light.Verify(
		trusted.SignedHeader,
		trusted.NextValidators,
		untrusted.SignedHeader,
		untrusted.Validators,
		TrustingPeriod,
		verifyTime,
		0,
		TrustLevel,
	); err != nil {
		return fmt.Errorf("failed to verify light client update: %w", err)
	}
	return nil
}
