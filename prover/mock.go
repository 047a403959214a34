package prover

import (
	"context"
	"crypto/sha256"
	"math/big"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/proofchain-labs/zk-light-client/zk"
	"github.com/proofchain-labs/zk-light-client/zk/aggregation"
)

// wrapperCircuit mirrors the public interface of a wrapped program proof:
// the program's verification-key digest and the hash of its committed
// bytes. The private product keeps the constraint system non-trivial.
type wrapperCircuit struct {
	VKeyDigest      frontend.Variable `gnark:",public"`
	CommittedDigest frontend.Variable `gnark:",public"`
	Product         frontend.Variable
}

func (c *wrapperCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Product, api.Mul(c.VKeyDigest, c.CommittedDigest))
	return nil
}

// MockBackend executes programs natively in-process and remembers the
// committed hash of every proof it produced, so Verify answers exactly
// whether a given commitment was proven under a given key. Aggregation
// requests are wrapped in a real BN254 Groth16 proof over wrapperCircuit,
// keyed at construction time, so terminal proofs pass pairing
// verification end to end.
type MockBackend struct {
	programs map[string]Program

	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey

	mu     sync.Mutex
	proven map[[32]byte]zk.VKeyDigest
}

// NewMockBackend compiles and keys the wrapper circuit and returns a
// backend over the given program registry.
func NewMockBackend(programs map[string]Program) (*MockBackend, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &wrapperCircuit{})
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInternal, "failed to compile wrapper circuit: %v", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInternal, "failed to set up wrapper circuit: %v", err)
	}
	return &MockBackend{
		programs: programs,
		ccs:      ccs,
		pk:       pk,
		vk:       vk,
		proven:   make(map[[32]byte]zk.VKeyDigest),
	}, nil
}

// AggregationVerifyingKey exposes the verifying key of the wrapper
// circuit, playing the role of the globally known aggregation key.
func (b *MockBackend) AggregationVerifyingKey() groth16.VerifyingKey {
	return b.vk
}

// Setup derives a stable verification-key digest for a program.
func (b *MockBackend) Setup(program string) (zk.VKeyDigest, error) {
	if _, ok := b.programs[program]; !ok {
		return zk.VKeyDigest{}, errorsmod.Wrap(ErrUnknownProgram, program)
	}
	digest := sha256.Sum256([]byte("vkey/" + program))
	// Clear the top bits so the digest doubles as a BN254 field element.
	digest[0] &= 0x1F
	return zk.VKeyDigestFromBytes(digest), nil
}

func (b *MockBackend) run(program string, input []byte) ([]byte, zk.VKeyDigest, error) {
	prog, ok := b.programs[program]
	if !ok {
		return nil, zk.VKeyDigest{}, errorsmod.Wrap(ErrUnknownProgram, program)
	}
	vkey, err := b.Setup(program)
	if err != nil {
		return nil, zk.VKeyDigest{}, err
	}
	out, err := prog(input, b)
	if err != nil {
		return nil, zk.VKeyDigest{}, errorsmod.Wrapf(ErrGenerateProof, "program %s: %v", program, err)
	}
	return out, vkey, nil
}

// Prove executes the program natively and records its commitment.
func (b *MockBackend) Prove(_ context.Context, program string, input []byte, _ ...*Proof) (*Proof, error) {
	out, vkey, err := b.run(program, input)
	if err != nil {
		return nil, err
	}

	committed := zk.Sha256(out)
	b.mu.Lock()
	b.proven[committed] = vkey
	b.mu.Unlock()

	return &Proof{
		Mode:         ProofModeCompressed,
		Program:      program,
		PublicValues: out,
		Proof:        committed[:],
	}, nil
}

// ProveAggregation executes the program natively and wraps its commitment
// in a Groth16 proof of the wrapper circuit.
func (b *MockBackend) ProveAggregation(_ context.Context, program string, input []byte, _ ...*Proof) (*aggregation.Proof, error) {
	out, vkey, err := b.run(program, input)
	if err != nil {
		return nil, err
	}

	var vkeyElem, digestElem, product fr.Element
	vkeyBytes := vkey.Bytes()
	vkeyElem.SetBytes(vkeyBytes[:])
	committed := aggregation.HashPublicValues(out)
	digestElem.SetBytes(committed[:])
	product.Mul(&vkeyElem, &digestElem)

	assignment := &wrapperCircuit{
		VKeyDigest:      vkeyElem.BigInt(new(big.Int)),
		CommittedDigest: digestElem.BigInt(new(big.Int)),
		Product:         product.BigInt(new(big.Int)),
	}
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, errorsmod.Wrapf(ErrGenerateProof, "failed to build wrapper witness: %v", err)
	}
	proof, err := groth16.Prove(b.ccs, b.pk, fullWitness)
	if err != nil {
		return nil, errorsmod.Wrapf(ErrGenerateProof, "failed to prove wrapper circuit: %v", err)
	}
	bnProof, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, errorsmod.Wrapf(ErrInternal, "unexpected proof type %T", proof)
	}

	return &aggregation.Proof{
		Proof:        aggregation.MarshalProof(bnProof),
		PublicValues: out,
		VKey:         vkey.String(),
	}, nil
}

// Verify reports whether a proof committing to committedHash was produced
// under vkey. Failing this check means the recursive chain is broken or
// forged.
func (b *MockBackend) Verify(vkey zk.VKeyDigest, committedHash [32]byte) error {
	b.mu.Lock()
	got, ok := b.proven[committedHash]
	b.mu.Unlock()
	if !ok {
		return errorsmod.Wrapf(ErrVKeyDigestMismatch, "no proof recorded for commitment %x", committedHash)
	}
	if got != vkey {
		return errorsmod.Wrapf(ErrVKeyDigestMismatch, "commitment %x was proven under %s, not %s", committedHash, got, vkey)
	}
	return nil
}
