package prover

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/proofchain-labs/zk-light-client/zk/tendermint"
)

// firstProvableHeight is the lowest height a BFT consensus proof can
// target: height 1 is the genesis block and has no trusted predecessor.
const firstProvableHeight = 2

// LightBlockSource fetches the light blocks consumed as witnesses.
type LightBlockSource interface {
	LightBlock(ctx context.Context, height uint64) (tendermint.LightBlock, error)
}

// CometLightBlockSource fetches light blocks from a CometBFT RPC node.
type CometLightBlockSource struct {
	client *rpchttp.HTTP
}

// NewCometLightBlockSource dials the RPC endpoint.
func NewCometLightBlockSource(rpcURL string) (*CometLightBlockSource, error) {
	client, err := rpchttp.New(rpcURL, "/websocket")
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInternal, "failed to create RPC client for %s: %v", rpcURL, err)
	}
	return &CometLightBlockSource{client: client}, nil
}

// ChainID reads the network identifier from the connected node.
func (s *CometLightBlockSource) ChainID(ctx context.Context) (string, error) {
	status, err := s.client.Status(ctx)
	if err != nil {
		return "", errorsmod.Wrapf(ErrInternal, "failed to fetch node status: %v", err)
	}
	return status.NodeInfo.Network, nil
}

// LightBlock assembles the signed header, validator set and next
// validator set at height.
func (s *CometLightBlockSource) LightBlock(ctx context.Context, height uint64) (tendermint.LightBlock, error) {
	h := int64(height)
	commit, err := s.client.Commit(ctx, &h)
	if err != nil {
		return tendermint.LightBlock{}, errorsmod.Wrapf(ErrInternal, "failed to fetch commit at height %d: %v", height, err)
	}
	validators, err := s.validatorSet(ctx, h)
	if err != nil {
		return tendermint.LightBlock{}, err
	}
	nextValidators, err := s.validatorSet(ctx, h+1)
	if err != nil {
		return tendermint.LightBlock{}, err
	}
	return tendermint.LightBlock{
		SignedHeader:   &commit.SignedHeader,
		Validators:     validators,
		NextValidators: nextValidators,
	}, nil
}

// validatorSet pages through the full validator set at height.
func (s *CometLightBlockSource) validatorSet(ctx context.Context, height int64) (*cmttypes.ValidatorSet, error) {
	const perPage = 100

	var validators []*cmttypes.Validator
	page := 1
	for {
		pageCopy, perPageCopy := page, perPage
		res, err := s.client.Validators(ctx, &height, &pageCopy, &perPageCopy)
		if err != nil {
			return nil, errorsmod.Wrapf(ErrInternal, "failed to fetch validators at height %d page %d: %v", height, page, err)
		}
		validators = append(validators, res.Validators...)
		if len(validators) >= res.Total || len(res.Validators) == 0 {
			break
		}
		page++
	}
	return cmttypes.NewValidatorSet(validators), nil
}

// TendermintProver generates the recursive consensus proofs for a BFT
// chain, one height at a time. Steps are strictly sequential: proving
// height h consumes the proof persisted for h-1.
type TendermintProver struct {
	backend       Backend
	store         *Store
	source        LightBlockSource
	initialHeight uint64
	logger        zerolog.Logger
}

// NewTendermintProver wires a prover over a backend, a proof store and a
// light block source. initialHeight is the trusted starting point;
// the first proven block is initialHeight+1.
func NewTendermintProver(backend Backend, store *Store, source LightBlockSource, initialHeight uint64, logger zerolog.Logger) *TendermintProver {
	return &TendermintProver{
		backend:       backend,
		store:         store,
		source:        source,
		initialHeight: initialHeight,
		logger:        logger.With().Str("prover", "tendermint").Logger(),
	}
}

// Prove generates and persists the consensus proof for height, returning
// the proving time.
func (p *TendermintProver) Prove(ctx context.Context, height uint64) (time.Duration, error) {
	if height < firstProvableHeight || height <= p.initialHeight {
		return 0, errorsmod.Wrapf(ErrHeightTooLow, "the first provable height is %d, got %d", max(firstProvableHeight, p.initialHeight+1), height)
	}

	target, err := p.source.LightBlock(ctx, height)
	if err != nil {
		return 0, err
	}
	trusted, err := p.source.LightBlock(ctx, height-1)
	if err != nil {
		return 0, err
	}
	return p.proveFromBlocks(ctx, trusted, target)
}

func (p *TendermintProver) proveFromBlocks(ctx context.Context, trusted, target tendermint.LightBlock) (time.Duration, error) {
	vkey, err := p.backend.Setup(tendermint.ConsensusProgram)
	if err != nil {
		return 0, err
	}

	targetHeight := uint64(target.SignedHeader.Header.Height)
	provingBlockIndex := targetHeight - p.initialHeight - 1

	var (
		parent      tendermint.Output
		parentProof []*Proof
	)
	if provingBlockIndex > 0 {
		// The parent proof is the one persisted for the previous height.
		proof, err := p.store.LoadCompressed(targetHeight - 1)
		if err != nil {
			return 0, err
		}
		if parent, err = tendermint.DecodeOutput(proof.PublicValues); err != nil {
			return 0, errorsmod.Wrapf(ErrLoadProof, "failed to decode parent output at height %d: %v", targetHeight-1, err)
		}
		parentProof = append(parentProof, proof)
	}

	appHash, err := hash32(target.SignedHeader.Header.AppHash)
	if err != nil {
		return 0, err
	}
	targetHeaderHash, err := hash32(target.SignedHeader.Header.Hash())
	if err != nil {
		return 0, err
	}

	input := tendermint.ConsensusInput{
		ProvingBlockIndex: provingBlockIndex,
		VKey:              vkey,
		Parent:            parent,
		Current: tendermint.VerifierPublicInput{
			ParentCompressedBlockPublicInput: parent.CompressedBlockPublicInput,
			AppHash:                          appHash,
			TargetHeight:                     targetHeight,
			TargetHeaderHash:                 targetHeaderHash,
		},
		Witness: tendermint.Witness{
			TrustedBlock:   trusted,
			UntrustedBlock: target,
		},
	}
	rawInput, err := cbor.Marshal(input)
	if err != nil {
		return 0, errorsmod.Wrapf(ErrGenerateProof, "failed to encode consensus input: %v", err)
	}

	start := time.Now()
	proof, err := p.backend.Prove(ctx, tendermint.ConsensusProgram, rawInput, parentProof...)
	if err != nil {
		return 0, err
	}
	provingTime := time.Since(start)

	if err := p.store.Save(targetHeight, proof); err != nil {
		return 0, err
	}

	p.logger.Info().
		Uint64("height", targetHeight).
		Uint64("index", provingBlockIndex).
		Dur("proving_time", provingTime).
		Msg("generated consensus proof")
	return provingTime, nil
}

// hash32 copies a hash into its fixed form, rejecting any other length.
func hash32(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) != 32 {
		return out, errorsmod.Wrapf(ErrInvalidBlockHash, "expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
