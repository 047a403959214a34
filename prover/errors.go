package prover

import errorsmod "cosmossdk.io/errors"

// ModuleName is the error codespace of the prover host layer.
const ModuleName = "prover"

// Host-side errors. These are recoverable at the call site, unlike a
// failed consensus or membership check inside a program, which means the
// statement being proven is false and is never retried.
var (
	ErrLoadProof           = errorsmod.Register(ModuleName, 2, "failed to load proof")
	ErrProofNotFound       = errorsmod.Register(ModuleName, 3, "proof file not found")
	ErrBadProofMode        = errorsmod.Register(ModuleName, 4, "unexpected proof mode")
	ErrSaveProof           = errorsmod.Register(ModuleName, 5, "failed to save proof")
	ErrGenerateProof       = errorsmod.Register(ModuleName, 6, "failed to generate proof")
	ErrEmptyWitnessChain   = errorsmod.Register(ModuleName, 7, "witness chain is empty")
	ErrInvalidBlockHash    = errorsmod.Register(ModuleName, 8, "block hash has invalid length")
	ErrHeightTooLow        = errorsmod.Register(ModuleName, 9, "block height below the first provable height")
	ErrVerifyGroth16Proof  = errorsmod.Register(ModuleName, 10, "failed to verify groth16 proof")
	ErrProofHeightMismatch = errorsmod.Register(ModuleName, 11, "query response height mismatch")
	ErrProofKeyMismatch    = errorsmod.Register(ModuleName, 12, "query response key mismatch")
	ErrVKeyDigestMismatch  = errorsmod.Register(ModuleName, 13, "verification key digest mismatch")
	ErrUnknownProgram      = errorsmod.Register(ModuleName, 14, "unknown program")
	ErrInternal            = errorsmod.Register(ModuleName, 15, "internal prover error")
)
