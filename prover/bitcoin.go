package prover

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/proofchain-labs/zk-light-client/zk/bitcoin"
)

// HeaderSource fetches block headers by height. Concrete node clients are
// external collaborators; the prover only depends on this capability.
type HeaderSource interface {
	Header(ctx context.Context, height uint64) (bitcoin.Header, error)
}

// BitcoinProver generates the recursive consensus proofs for a
// proof-of-work chain. As on the BFT side, steps are sequential: proving
// height h consumes the proof persisted for h-1.
type BitcoinProver struct {
	backend       Backend
	store         *Store
	source        HeaderSource
	initialHeight uint64
	logger        zerolog.Logger
}

// NewBitcoinProver wires a prover over a backend, a proof store and a
// header source. initialHeight is the first height to be proven; it must
// leave room for the trust window below it.
func NewBitcoinProver(backend Backend, store *Store, source HeaderSource, initialHeight uint64, logger zerolog.Logger) *BitcoinProver {
	return &BitcoinProver{
		backend:       backend,
		store:         store,
		source:        source,
		initialHeight: initialHeight,
		logger:        logger.With().Str("prover", "bitcoin").Logger(),
	}
}

// Prove generates and persists the consensus proof for height, returning
// the proving time.
func (p *BitcoinProver) Prove(ctx context.Context, height uint64) (time.Duration, error) {
	minHeight := uint64(bitcoin.TrustWindow + 1)
	if height < minHeight || height < p.initialHeight {
		return 0, errorsmod.Wrapf(ErrHeightTooLow, "the first provable height is %d, got %d", max(minHeight, p.initialHeight), height)
	}

	proposedChain, err := p.fetchWindow(ctx, height)
	if err != nil {
		return 0, err
	}
	retargetBlock, err := p.source.Header(ctx, retargetHeight(height))
	if err != nil {
		return 0, err
	}

	return p.proveFromHeaders(ctx, proposedChain, retargetBlock)
}

// fetchWindow fetches the trust window plus the proposed header, oldest
// first.
func (p *BitcoinProver) fetchWindow(ctx context.Context, height uint64) ([]bitcoin.Header, error) {
	window := make([]bitcoin.Header, 0, bitcoin.TrustWindow+1)
	for h := height - bitcoin.TrustWindow; h <= height; h++ {
		header, err := p.source.Header(ctx, h)
		if err != nil {
			return nil, err
		}
		window = append(window, header)
	}
	return window, nil
}

// retargetHeight locates the difficulty epoch start relevant to proving
// height: the current epoch's first block, or the previous epoch's when
// height itself sits on a boundary.
func retargetHeight(height uint64) uint64 {
	if height%bitcoin.EpochBlocks == 0 {
		return height - bitcoin.EpochBlocks
	}
	return height - height%bitcoin.EpochBlocks
}

func (p *BitcoinProver) proveFromHeaders(ctx context.Context, proposedChain []bitcoin.Header, retargetBlock bitcoin.Header) (time.Duration, error) {
	if len(proposedChain) == 0 {
		return 0, ErrEmptyWitnessChain
	}
	vkey, err := p.backend.Setup(bitcoin.ConsensusProgram)
	if err != nil {
		return 0, err
	}

	proposed := proposedChain[len(proposedChain)-1]
	previous := proposedChain[len(proposedChain)-2]
	deep := proposedChain[len(proposedChain)-bitcoin.Confirmations-1]

	pub := bitcoin.BlockPublicInput{
		PrevBlockHash:     previous.BlockHash(),
		ProposedBlockHash: proposed.BlockHash(),
		RetargetBlockHash: retargetBlock.BlockHash(),
		MedianBlockHash:   bitcoin.MedianBlock(proposedChain).BlockHash(),
		DeepTxMerkleRoot:  deep.MerkleRoot,
		ProposedHeight:    proposed.Height,
	}

	index := proposed.Height - p.initialHeight

	var (
		parent      bitcoin.VerifierPublicInput
		parentProof []*Proof
	)
	if index > 0 {
		proof, err := p.store.LoadCompressed(proposed.Height - 1)
		if err != nil {
			return 0, err
		}
		if parent, err = bitcoin.DecodeVerifierPublicInput(proof.PublicValues); err != nil {
			return 0, errorsmod.Wrapf(ErrLoadProof, "failed to decode parent output at height %d: %v", proposed.Height-1, err)
		}
		parentProof = append(parentProof, proof)
	}

	input := bitcoin.ConsensusInput{
		Index:            index,
		VKey:             vkey,
		Parent:           parent,
		BlockPublicInput: pub,
		Witness: bitcoin.ConsensusWitness{
			ProposedChain: proposedChain,
			RetargetBlock: retargetBlock,
		},
	}
	rawInput, err := cbor.Marshal(input)
	if err != nil {
		return 0, errorsmod.Wrapf(ErrGenerateProof, "failed to encode consensus input: %v", err)
	}

	start := time.Now()
	proof, err := p.backend.Prove(ctx, bitcoin.ConsensusProgram, rawInput, parentProof...)
	if err != nil {
		return 0, err
	}
	provingTime := time.Since(start)

	if err := p.store.Save(proposed.Height, proof); err != nil {
		return 0, err
	}

	p.logger.Info().
		Uint64("height", proposed.Height).
		Uint64("index", index).
		Dur("proving_time", provingTime).
		Msg("generated consensus proof")
	return provingTime, nil
}
