package prover_test

import (
	"context"
	"crypto/sha256"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/proofchain-labs/zk-light-client/prover"
	"github.com/proofchain-labs/zk-light-client/testutil"
	"github.com/proofchain-labs/zk-light-client/zk/bitcoin"
	"github.com/proofchain-labs/zk-light-client/zk/chain"
)

// mapHeaderSource serves headers from memory.
type mapHeaderSource map[uint64]bitcoin.Header

func (s mapHeaderSource) Header(_ context.Context, height uint64) (bitcoin.Header, error) {
	header, ok := s[height]
	if !ok {
		return bitcoin.Header{}, errorsmod.Wrapf(prover.ErrInternal, "no header at height %d", height)
	}
	return header, nil
}

func minedSource(n int) (mapHeaderSource, []bitcoin.Header) {
	headers := testutil.MineChain(0, n, testutil.EasyBits)
	source := make(mapHeaderSource, len(headers))
	for _, h := range headers {
		source[h.Height] = h
	}
	return source, headers
}

func blockRecord(headers []bitcoin.Header, height uint64) bitcoin.BlockPublicInput {
	window := headers[height-bitcoin.TrustWindow : height+1]
	proposed := window[len(window)-1]
	previous := window[len(window)-2]
	deep := window[len(window)-bitcoin.Confirmations-1]
	return bitcoin.BlockPublicInput{
		PrevBlockHash:     previous.BlockHash(),
		ProposedBlockHash: proposed.BlockHash(),
		RetargetBlockHash: headers[0].BlockHash(),
		MedianBlockHash:   bitcoin.MedianBlock(window).BlockHash(),
		DeepTxMerkleRoot:  deep.MerkleRoot,
		ProposedHeight:    height,
	}
}

func TestBitcoinProverRecursiveChain(t *testing.T) {
	source, headers := minedSource(15)
	backend := newTestBackend(t)
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	p := prover.NewBitcoinProver(backend, store, source, 12, zerolog.Nop())
	ctx := context.Background()

	for height := uint64(12); height <= 14; height++ {
		_, err := p.Prove(ctx, height)
		require.NoError(t, err, "height %d", height)
	}

	// Replay the accumulator fold over the three block records.
	acc := chain.Genesis(blockRecord(headers, 12).Hash())
	acc = chain.Fold(acc, blockRecord(headers, 13).Hash())
	acc = chain.Fold(acc, blockRecord(headers, 14).Hash())

	proof, err := store.LoadCompressed(14)
	require.NoError(t, err)
	record, err := bitcoin.DecodeVerifierPublicInput(proof.PublicValues)
	require.NoError(t, err)
	require.Equal(t, [32]byte(acc), record.CompressedBlockPublicInput)
	require.Equal(t, uint64(14), record.CurrentHeight)
	require.Equal(t, headers[11].MerkleRoot, record.DeepTxMerkleRoot)
}

func TestBitcoinProverFirstAccumulator(t *testing.T) {
	source, headers := minedSource(15)
	backend := newTestBackend(t)
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	p := prover.NewBitcoinProver(backend, store, source, 12, zerolog.Nop())
	_, err = p.Prove(context.Background(), 12)
	require.NoError(t, err)

	proof, err := store.LoadCompressed(12)
	require.NoError(t, err)
	record, err := bitcoin.DecodeVerifierPublicInput(proof.PublicValues)
	require.NoError(t, err)

	// acc[0] = H(H(record)).
	stepHash := blockRecord(headers, 12).Hash()
	require.Equal(t, [32]byte(sha256.Sum256(stepHash[:])), record.CompressedBlockPublicInput)
}

func TestBitcoinProverRejectsLowHeight(t *testing.T) {
	source, _ := minedSource(15)
	backend := newTestBackend(t)
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	p := prover.NewBitcoinProver(backend, store, source, 12, zerolog.Nop())
	_, err = p.Prove(context.Background(), 11)
	require.ErrorIs(t, err, prover.ErrHeightTooLow)
}

func TestBitcoinProverRequiresParentProof(t *testing.T) {
	source, _ := minedSource(15)
	backend := newTestBackend(t)
	store, err := prover.NewStore(t.TempDir())
	require.NoError(t, err)

	p := prover.NewBitcoinProver(backend, store, source, 12, zerolog.Nop())

	// Height 13 has index 1 and needs the persisted proof for height 12.
	_, err = p.Prove(context.Background(), 13)
	require.ErrorIs(t, err, prover.ErrProofNotFound)
}
