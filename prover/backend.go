// Package prover hosts the proving side of the light client: the backend
// oracle contract, durable proof storage, and the per-chain provers that
// assemble circuit inputs from live chain data.
package prover

import (
	"context"
	"fmt"

	"github.com/proofchain-labs/zk-light-client/zk"
	"github.com/proofchain-labs/zk-light-client/zk/aggregation"
	"github.com/proofchain-labs/zk-light-client/zk/bitcoin"
	"github.com/proofchain-labs/zk-light-client/zk/membership"
	"github.com/proofchain-labs/zk-light-client/zk/tendermint"
)

// ProofMode distinguishes the backend's native proof representations.
type ProofMode string

const (
	// ProofModeCompressed is the constant-size recursive representation
	// used for per-step chain proofs.
	ProofModeCompressed ProofMode = "compressed"
	// ProofModeGroth16 is the terminal pairing-based representation.
	ProofModeGroth16 ProofMode = "groth16"
)

// Proof is a backend proof together with the bytes its program committed.
type Proof struct {
	Mode         ProofMode `cbor:"mode"`
	Program      string    `cbor:"program"`
	PublicValues []byte    `cbor:"public_values"`
	Proof        []byte    `cbor:"proof"`
}

// Program is a proving program body: it consumes the raw circuit input and
// returns the bytes to commit, or an error when the statement is false.
// The verifier argument is how a program checks proofs produced by earlier
// recursive steps.
type Program func(input []byte, verifier zk.ProofVerifier) ([]byte, error)

// Backend is the proving oracle. Implementations run programs inside a
// zero-knowledge virtual machine; the contract only fixes the input and
// output shapes. Prove and ProveAggregation block until the proof exists.
type Backend interface {
	zk.ProofVerifier

	// Setup returns the verification-key digest of a program.
	Setup(program string) (zk.VKeyDigest, error)
	// Prove runs a program over input and returns a compressed proof of
	// its committed output. Parent proofs referenced by the input must be
	// passed alongside it.
	Prove(ctx context.Context, program string, input []byte, parents ...*Proof) (*Proof, error)
	// ProveAggregation runs a program over input and wraps the result in
	// the terminal pairing-based representation.
	ProveAggregation(ctx context.Context, program string, input []byte, parents ...*Proof) (*aggregation.Proof, error)
}

// Kind selects a backend implementation. It is passed in explicitly
// rather than read from the process environment.
type Kind string

const (
	KindMock    Kind = "mock"
	KindCPU     Kind = "cpu"
	KindCUDA    Kind = "cuda"
	KindNetwork Kind = "network"
)

// Config carries the backend selection.
type Config struct {
	Kind Kind
}

// NewBackend constructs the configured backend over the given program
// registry. Only the mock backend runs in-process; the other kinds are
// fulfilled by an external proving system conforming to Backend.
func NewBackend(cfg Config, programs map[string]Program) (Backend, error) {
	switch cfg.Kind {
	case KindMock, "":
		return NewMockBackend(programs)
	case KindCPU, KindCUDA, KindNetwork:
		return nil, fmt.Errorf("backend kind %q requires an external proving system", cfg.Kind)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// Programs returns the default program registry covering both chains,
// membership and aggregation.
func Programs() map[string]Program {
	return map[string]Program{
		bitcoin.ConsensusProgram:    bitcoin.RunConsensus,
		bitcoin.InclusionProgram:    bitcoin.RunInclusion,
		tendermint.ConsensusProgram: tendermint.RunConsensus,
		membership.Program:          membership.Run,
		aggregation.Program:         aggregation.Run,
	}
}
