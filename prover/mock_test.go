package prover_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proofchain-labs/zk-light-client/prover"
	"github.com/proofchain-labs/zk-light-client/zk"
	"github.com/proofchain-labs/zk-light-client/zk/aggregation"
)

// echoProgram commits its input unchanged.
func echoProgram(input []byte, _ zk.ProofVerifier) ([]byte, error) {
	return input, nil
}

// failingProgram always represents a false statement.
func failingProgram([]byte, zk.ProofVerifier) ([]byte, error) {
	return nil, errors.New("statement is false")
}

func newTestBackend(t *testing.T) *prover.MockBackend {
	t.Helper()
	programs := prover.Programs()
	programs["echo"] = echoProgram
	programs["failing"] = failingProgram
	backend, err := prover.NewMockBackend(programs)
	require.NoError(t, err)
	return backend
}

func TestNewBackendKinds(t *testing.T) {
	backend, err := prover.NewBackend(prover.Config{Kind: prover.KindMock}, prover.Programs())
	require.NoError(t, err)
	require.NotNil(t, backend)

	_, err = prover.NewBackend(prover.Config{Kind: prover.KindCPU}, prover.Programs())
	require.ErrorContains(t, err, "requires an external proving system")

	_, err = prover.NewBackend(prover.Config{Kind: "plonk"}, prover.Programs())
	require.ErrorContains(t, err, "unknown backend kind")
}

func TestSetupDigestIsStableAndFieldSized(t *testing.T) {
	backend := newTestBackend(t)

	first, err := backend.Setup("echo")
	require.NoError(t, err)
	second, err := backend.Setup("echo")
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := backend.Setup("failing")
	require.NoError(t, err)
	require.NotEqual(t, first, other)

	// The flattened digest fits a BN254 field element.
	b := first.Bytes()
	require.Zero(t, b[0]&0xE0)

	_, err = backend.Setup("unregistered")
	require.ErrorIs(t, err, prover.ErrUnknownProgram)
}

func TestProveAndVerify(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	proof, err := backend.Prove(ctx, "echo", []byte("committed bytes"))
	require.NoError(t, err)
	require.Equal(t, prover.ProofModeCompressed, proof.Mode)
	require.Equal(t, []byte("committed bytes"), proof.PublicValues)

	vkey, err := backend.Setup("echo")
	require.NoError(t, err)
	require.NoError(t, backend.Verify(vkey, zk.Sha256(proof.PublicValues)))

	// A commitment that was never proven is rejected.
	require.ErrorIs(t, backend.Verify(vkey, zk.Sha256([]byte("never proven"))), prover.ErrVKeyDigestMismatch)

	// The right commitment under the wrong program key is rejected too.
	otherVKey, err := backend.Setup("failing")
	require.NoError(t, err)
	require.ErrorIs(t, backend.Verify(otherVKey, zk.Sha256(proof.PublicValues)), prover.ErrVKeyDigestMismatch)
}

func TestProveFalseStatement(t *testing.T) {
	backend := newTestBackend(t)

	_, err := backend.Prove(context.Background(), "failing", nil)
	require.ErrorIs(t, err, prover.ErrGenerateProof)

	_, err = backend.Prove(context.Background(), "unregistered", nil)
	require.ErrorIs(t, err, prover.ErrUnknownProgram)
}

func TestProveAggregationProducesVerifiableGroth16(t *testing.T) {
	backend := newTestBackend(t)

	proof, err := backend.ProveAggregation(context.Background(), "echo", []byte("terminal record"))
	require.NoError(t, err)
	require.Len(t, proof.Proof, aggregation.ProofSize)
	require.Equal(t, []byte("terminal record"), proof.PublicValues)

	vkey, err := backend.Setup("echo")
	require.NoError(t, err)
	require.Equal(t, vkey.String(), proof.VKey)

	ok, err := proof.Verify(backend.AggregationVerifyingKey())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGroth16ProofRejectsTampering(t *testing.T) {
	backend := newTestBackend(t)

	proof, err := backend.ProveAggregation(context.Background(), "echo", []byte("terminal record"))
	require.NoError(t, err)

	tamperedValues := *proof
	tamperedValues.PublicValues = []byte("forged record")
	ok, err := tamperedValues.Verify(backend.AggregationVerifyingKey())
	require.False(t, ok)
	require.Error(t, err)

	tamperedKey := *proof
	tamperedKey.VKey = zk.VKeyDigest{0xBAD}.String()
	ok, err = tamperedKey.Verify(backend.AggregationVerifyingKey())
	require.False(t, ok)
	require.Error(t, err)

	truncated := *proof
	truncated.Proof = proof.Proof[:100]
	ok, err = truncated.Verify(backend.AggregationVerifyingKey())
	require.False(t, ok)
	require.ErrorContains(t, err, "invalid proof length")
}
