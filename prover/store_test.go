package prover_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proofchain-labs/zk-light-client/prover"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := prover.NewStore(filepath.Join(t.TempDir(), "consensus"))
	require.NoError(t, err)

	proof := &prover.Proof{
		Mode:         prover.ProofModeCompressed,
		Program:      "tendermint-consensus",
		PublicValues: []byte{1, 2, 3},
		Proof:        []byte{4, 5, 6},
	}
	require.NoError(t, store.Save(42, proof))

	loaded, err := store.Load(42)
	require.NoError(t, err)
	require.Equal(t, proof, loaded)

	compressed, err := store.LoadCompressed(42)
	require.NoError(t, err)
	require.Equal(t, proof, compressed)
}

func TestStoreLoadMissing(t *testing.T) {
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(7)
	require.ErrorIs(t, err, prover.ErrProofNotFound)
}

func TestStoreLoadCompressedRejectsWrongMode(t *testing.T) {
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(3, &prover.Proof{Mode: prover.ProofModeGroth16}))

	_, err = store.LoadCompressed(3)
	require.ErrorIs(t, err, prover.ErrBadProofMode)
}

func TestBasePathLayout(t *testing.T) {
	base := prover.NewBasePath("/tmp/zk")
	require.Equal(t, filepath.Join("/tmp/zk", "proofs", "chain-1", "consensus"), base.ConsensusProofDir("chain-1"))
	require.Equal(t, filepath.Join("/tmp/zk", "proofs", "chain-1", "inclusion"), base.InclusionProofDir("chain-1"))

	require.NotEmpty(t, prover.DefaultBasePath().ConsensusProofDir("chain-1"))
}
