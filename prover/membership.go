package prover

import (
	"bytes"
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	commitmenttypes "github.com/cosmos/ibc-go/v10/modules/core/23-commitment/types"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/proofchain-labs/zk-light-client/zk/aggregation"
	"github.com/proofchain-labs/zk-light-client/zk/membership"
	"github.com/proofchain-labs/zk-light-client/zk/tendermint"
)

// StateQuerier fetches existence proofs for state keys and the state root
// they are checked against.
type StateQuerier interface {
	// ProveKey returns the value stored under keyPath and its raw merkle
	// proof, valid against the app hash of the block at height.
	ProveKey(ctx context.Context, keyPath [][]byte, height uint64) (value, rawProof []byte, err error)
	// AppHash returns the application state root committed in the header
	// at height.
	AppHash(ctx context.Context, height uint64) ([32]byte, error)
}

// CometStateQuerier queries state through a CometBFT RPC node's ABCI
// interface.
type CometStateQuerier struct {
	client *rpchttp.HTTP
}

// NewCometStateQuerier dials the RPC endpoint.
func NewCometStateQuerier(rpcURL string) (*CometStateQuerier, error) {
	client, err := rpchttp.New(rpcURL, "/websocket")
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInternal, "failed to create RPC client for %s: %v", rpcURL, err)
	}
	return &CometStateQuerier{client: client}, nil
}

// ProveKey queries the store named by the first key segment. The app hash
// in block H commits the state after applying block H-1, so the query runs
// at height-1.
func (q *CometStateQuerier) ProveKey(ctx context.Context, keyPath [][]byte, height uint64) ([]byte, []byte, error) {
	if len(keyPath) < 2 {
		return nil, nil, errorsmod.Wrapf(ErrProofKeyMismatch, "key path needs a store name and at least one key segment, got %d segments", len(keyPath))
	}
	storeName := string(keyPath[0])
	key := bytes.Join(keyPath[1:], nil)
	queryHeight := int64(height) - 1

	res, err := q.client.ABCIQueryWithOptions(
		ctx,
		fmt.Sprintf("store/%s/key", storeName),
		key,
		rpcclient.ABCIQueryOptions{Height: queryHeight, Prove: true},
	)
	if err != nil {
		return nil, nil, errorsmod.Wrapf(ErrInternal, "failed to query store %s: %v", storeName, err)
	}

	if res.Response.Height != queryHeight {
		// Height 0 usually means the key does not exist or the state has
		// been pruned.
		return nil, nil, errorsmod.Wrapf(ErrProofHeightMismatch, "got %d, expected %d", res.Response.Height, queryHeight)
	}
	if !bytes.Equal(res.Response.Key, key) {
		return nil, nil, errorsmod.Wrapf(ErrProofKeyMismatch, "queried %x, response carries %x", key, res.Response.Key)
	}
	if len(res.Response.Value) == 0 {
		return nil, nil, errorsmod.Wrapf(ErrProofKeyMismatch, "key %x returned an empty value, cannot prove existence", key)
	}
	if res.Response.ProofOps == nil {
		return nil, nil, errorsmod.Wrap(ErrInternal, "ABCI response carries no proof")
	}

	merkleProof, err := commitmenttypes.ConvertProofs(res.Response.ProofOps)
	if err != nil {
		return nil, nil, errorsmod.Wrapf(ErrInternal, "failed to convert proof ops: %v", err)
	}
	rawProof, err := merkleProof.Marshal()
	if err != nil {
		return nil, nil, errorsmod.Wrapf(ErrInternal, "failed to encode merkle proof: %v", err)
	}
	return res.Response.Value, rawProof, nil
}

// AppHash reads the state root from the header at height.
func (q *CometStateQuerier) AppHash(ctx context.Context, height uint64) ([32]byte, error) {
	h := int64(height)
	res, err := q.client.Block(ctx, &h)
	if err != nil {
		return [32]byte{}, errorsmod.Wrapf(ErrInternal, "failed to fetch block at height %d: %v", height, err)
	}
	return hash32(res.Block.Header.AppHash)
}

// MembershipProver proves that state keys exist under the app hash of an
// already-proven block, then aggregates the membership proof with that
// block's consensus proof into one terminal pairing-based proof.
type MembershipProver struct {
	backend Backend
	// consensusStore holds the per-height consensus proofs the terminal
	// proof is anchored to.
	consensusStore *Store
	querier        StateQuerier
	logger         zerolog.Logger
}

// NewMembershipProver wires a prover over a backend, the consensus proof
// store and a state querier.
func NewMembershipProver(backend Backend, consensusStore *Store, querier StateQuerier, logger zerolog.Logger) *MembershipProver {
	return &MembershipProver{
		backend:        backend,
		consensusStore: consensusStore,
		querier:        querier,
		logger:         logger.With().Str("prover", "membership").Logger(),
	}
}

// Prove generates the aggregated proof that every key path exists under
// the state root of the block at height, returning it with the
// aggregation proving time.
func (p *MembershipProver) Prove(ctx context.Context, keyPaths [][][]byte, height uint64) (*aggregation.Proof, time.Duration, error) {
	consensusProof, err := p.consensusStore.LoadCompressed(height)
	if err != nil {
		return nil, 0, err
	}
	if consensusProof.Program != tendermint.ConsensusProgram {
		return nil, 0, errorsmod.Wrapf(ErrVKeyDigestMismatch, "stored proof at height %d was produced by program %s", height, consensusProof.Program)
	}

	input, err := p.prepareInput(ctx, keyPaths, height)
	if err != nil {
		return nil, 0, err
	}
	rawInput, err := cbor.Marshal(input)
	if err != nil {
		return nil, 0, errorsmod.Wrapf(ErrGenerateProof, "failed to encode membership input: %v", err)
	}
	membershipProof, err := p.backend.Prove(ctx, membership.Program, rawInput)
	if err != nil {
		return nil, 0, err
	}

	// The state roots must already agree here; failing late inside the
	// aggregation program would waste a proving run on a false statement.
	if err := aggregation.CheckLink(consensusProof.PublicValues, membershipProof.PublicValues); err != nil {
		return nil, 0, err
	}

	consensusVKey, err := p.backend.Setup(tendermint.ConsensusProgram)
	if err != nil {
		return nil, 0, err
	}
	membershipVKey, err := p.backend.Setup(membership.Program)
	if err != nil {
		return nil, 0, err
	}

	aggInput := aggregation.Input{
		ConsensusVKey:         consensusVKey,
		ConsensusPublicInput:  consensusProof.PublicValues,
		MembershipVKey:        membershipVKey,
		MembershipPublicInput: membershipProof.PublicValues,
	}
	rawAggInput, err := cbor.Marshal(aggInput)
	if err != nil {
		return nil, 0, errorsmod.Wrapf(ErrGenerateProof, "failed to encode aggregation input: %v", err)
	}

	start := time.Now()
	proof, err := p.backend.ProveAggregation(ctx, aggregation.Program, rawAggInput, consensusProof, membershipProof)
	if err != nil {
		return nil, 0, err
	}
	provingTime := time.Since(start)

	p.logger.Info().
		Uint64("height", height).
		Int("keys", len(keyPaths)).
		Dur("proving_time", provingTime).
		Msg("generated aggregated membership proof")
	return proof, provingTime, nil
}

// prepareInput fetches one proof per key path. Fetches are independent
// and run concurrently; results join by position so the committed order
// matches the request order.
func (p *MembershipProver) prepareInput(ctx context.Context, keyPaths [][][]byte, height uint64) (membership.Input, error) {
	pairs := make([]membership.ProofPair, len(keyPaths))

	g, gctx := errgroup.WithContext(ctx)
	for i, keyPath := range keyPaths {
		g.Go(func() error {
			value, rawProof, err := p.querier.ProveKey(gctx, keyPath, height)
			if err != nil {
				return err
			}
			pairs[i] = membership.ProofPair{
				KV:       membership.KVPair{Keys: keyPath, Value: value},
				RawProof: rawProof,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return membership.Input{}, err
	}

	appHash, err := p.querier.AppHash(ctx, height)
	if err != nil {
		return membership.Input{}, err
	}

	// Sanity check before spending a proving run.
	if err := membership.VerifyMembership(appHash, pairs); err != nil {
		return membership.Input{}, err
	}

	return membership.Input{AppHash: appHash, Proofs: pairs}, nil
}
