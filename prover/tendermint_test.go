package prover_test

import (
	"bytes"
	"context"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/proofchain-labs/zk-light-client/prover"
	"github.com/proofchain-labs/zk-light-client/testutil"
	"github.com/proofchain-labs/zk-light-client/zk/chain"
	"github.com/proofchain-labs/zk-light-client/zk/tendermint"
)

const testChainID = "zkprover-test-1"

// chainLightBlockSource serves light blocks from a deterministic in-memory
// chain.
type chainLightBlockSource struct {
	chain *testutil.BFTChain
}

func (s *chainLightBlockSource) LightBlock(_ context.Context, height uint64) (tendermint.LightBlock, error) {
	return s.chain.LightBlock(height), nil
}

// fixtureQuerier serves the hand-built existence proofs of a membership
// fixture, keyed by key path.
type fixtureQuerier struct {
	fixture testutil.MembershipFixture
}

func (q *fixtureQuerier) ProveKey(_ context.Context, keyPath [][]byte, _ uint64) ([]byte, []byte, error) {
	for _, pair := range q.fixture.Pairs {
		if len(pair.KV.Keys) != len(keyPath) {
			continue
		}
		match := true
		for i, segment := range keyPath {
			if !bytes.Equal(pair.KV.Keys[i], segment) {
				match = false
				break
			}
		}
		if match {
			return pair.KV.Value, pair.RawProof, nil
		}
	}
	return nil, nil, errorsmod.Wrapf(prover.ErrProofKeyMismatch, "no fixture proof for key path")
}

func (q *fixtureQuerier) AppHash(_ context.Context, _ uint64) ([32]byte, error) {
	return q.fixture.AppHash, nil
}

func proveConsensusChain(t *testing.T, backend prover.Backend, appHash []byte, lastHeight uint64) (*prover.Store, *testutil.BFTChain) {
	t.Helper()
	bftChain := testutil.NewBFTChain(testChainID, 4, appHash)
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	p := prover.NewTendermintProver(backend, store, &chainLightBlockSource{chain: bftChain}, 1, zerolog.Nop())
	for height := uint64(2); height <= lastHeight; height++ {
		_, err := p.Prove(context.Background(), height)
		require.NoError(t, err, "height %d", height)
	}
	return store, bftChain
}

func TestTendermintProverRecursiveChain(t *testing.T) {
	backend := newTestBackend(t)
	appHash := bytes.Repeat([]byte{0xA7}, 32)
	store, bftChain := proveConsensusChain(t, backend, appHash, 4)

	// Replay the accumulator fold over the three proving steps.
	var acc chain.Accumulator
	for height := uint64(2); height <= 4; height++ {
		header := bftChain.LightBlock(height).SignedHeader.Header
		pub := tendermint.VerifierPublicInput{
			ParentCompressedBlockPublicInput: [32]byte(acc),
			TargetHeight:                     height,
		}
		copy(pub.AppHash[:], header.AppHash)
		copy(pub.TargetHeaderHash[:], header.Hash())
		if height == 2 {
			acc = chain.Genesis(pub.Hash())
		} else {
			acc = chain.Fold(acc, pub.Hash())
		}
	}

	proof, err := store.LoadCompressed(4)
	require.NoError(t, err)
	output, err := tendermint.DecodeOutput(proof.PublicValues)
	require.NoError(t, err)
	require.Equal(t, uint64(3), output.TrustedHeight)
	require.Equal(t, uint64(4), output.TargetHeight)
	require.Equal(t, [32]byte(acc), output.CompressedBlockPublicInput)
	require.Equal(t, appHash, output.AppHash[:])

	target := bftChain.LightBlock(4).SignedHeader.Header
	require.Equal(t, target.Hash().Bytes(), output.TargetHeaderHash[:])
}

func TestTendermintProverRejectsLowHeight(t *testing.T) {
	backend := newTestBackend(t)
	bftChain := testutil.NewBFTChain(testChainID, 4, bytes.Repeat([]byte{0xA7}, 32))
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	p := prover.NewTendermintProver(backend, store, &chainLightBlockSource{chain: bftChain}, 1, zerolog.Nop())
	_, err = p.Prove(context.Background(), 1)
	require.ErrorIs(t, err, prover.ErrHeightTooLow)

	// With a later trusted start, heights at or below it are too low even
	// when they clear the absolute floor.
	p = prover.NewTendermintProver(backend, store, &chainLightBlockSource{chain: bftChain}, 5, zerolog.Nop())
	_, err = p.Prove(context.Background(), 5)
	require.ErrorIs(t, err, prover.ErrHeightTooLow)
}

func TestTendermintProverRequiresParentProof(t *testing.T) {
	backend := newTestBackend(t)
	bftChain := testutil.NewBFTChain(testChainID, 4, bytes.Repeat([]byte{0xA7}, 32))
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	p := prover.NewTendermintProver(backend, store, &chainLightBlockSource{chain: bftChain}, 1, zerolog.Nop())
	_, err = p.Prove(context.Background(), 3)
	require.ErrorIs(t, err, prover.ErrProofNotFound)
}

func TestMembershipProverEndToEnd(t *testing.T) {
	fixture, err := testutil.NewMembershipFixture()
	require.NoError(t, err)

	backend := newTestBackend(t)
	store, _ := proveConsensusChain(t, backend, fixture.AppHash[:], 4)

	keyPaths := make([][][]byte, 0, len(fixture.Pairs))
	for _, pair := range fixture.Pairs {
		keyPaths = append(keyPaths, pair.KV.Keys)
	}

	p := prover.NewMembershipProver(backend, store, &fixtureQuerier{fixture: fixture}, zerolog.Nop())
	proof, provingTime, err := p.Prove(context.Background(), keyPaths, 4)
	require.NoError(t, err)
	require.Positive(t, provingTime)

	ok, err := proof.Verify(backend.AggregationVerifyingKey())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMembershipProverRejectsUnknownKey(t *testing.T) {
	fixture, err := testutil.NewMembershipFixture()
	require.NoError(t, err)

	backend := newTestBackend(t)
	store, _ := proveConsensusChain(t, backend, fixture.AppHash[:], 4)

	p := prover.NewMembershipProver(backend, store, &fixtureQuerier{fixture: fixture}, zerolog.Nop())
	_, _, err = p.Prove(context.Background(), [][][]byte{{[]byte("bank"), []byte("no such key")}}, 4)
	require.ErrorIs(t, err, prover.ErrProofKeyMismatch)
}

func TestMembershipProverMissingConsensusProof(t *testing.T) {
	fixture, err := testutil.NewMembershipFixture()
	require.NoError(t, err)

	backend := newTestBackend(t)
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	p := prover.NewMembershipProver(backend, store, &fixtureQuerier{fixture: fixture}, zerolog.Nop())
	_, _, err = p.Prove(context.Background(), [][][]byte{fixture.Pairs[0].KV.Keys}, 4)
	require.ErrorIs(t, err, prover.ErrProofNotFound)
}

func TestMembershipProverRejectsForeignProof(t *testing.T) {
	fixture, err := testutil.NewMembershipFixture()
	require.NoError(t, err)

	backend := newTestBackend(t)
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	// A stored proof produced by a different program cannot anchor the
	// aggregation.
	foreign, err := backend.Prove(context.Background(), "echo", []byte("not a consensus record"))
	require.NoError(t, err)
	require.NoError(t, store.Save(4, foreign))

	p := prover.NewMembershipProver(backend, store, &fixtureQuerier{fixture: fixture}, zerolog.Nop())
	_, _, err = p.Prove(context.Background(), [][][]byte{fixture.Pairs[0].KV.Keys}, 4)
	require.ErrorIs(t, err, prover.ErrVKeyDigestMismatch)
}

func TestMembershipProverRejectsMismatchedRoot(t *testing.T) {
	fixture, err := testutil.NewMembershipFixture()
	require.NoError(t, err)

	backend := newTestBackend(t)
	// The consensus chain commits a different app hash than the one the
	// membership proofs verify against.
	store, _ := proveConsensusChain(t, backend, bytes.Repeat([]byte{0xEE}, 32), 4)

	p := prover.NewMembershipProver(backend, store, &fixtureQuerier{fixture: fixture}, zerolog.Nop())
	_, _, err = p.Prove(context.Background(), [][][]byte{fixture.Pairs[0].KV.Keys}, 4)
	require.Error(t, err)
	require.ErrorContains(t, err, "state root")
}
