// Package testutil builds deterministic synthetic chains for tests: signed
// BFT light blocks backed by in-memory validators, and mined proof-of-work
// header chains that satisfy the consensus rules they are checked against.
package testutil

import (
	"fmt"
	"time"

	"github.com/cometbft/cometbft/crypto/tmhash"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	cmtversion "github.com/cometbft/cometbft/proto/tendermint/version"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/cometbft/cometbft/version"

	"github.com/proofchain-labs/zk-light-client/zk/tendermint"
)

// BFTChain produces signed light blocks for one chain with a static
// validator set. Blocks are deterministic in everything but the validator
// keys, which are generated once per chain.
type BFTChain struct {
	ChainID string

	signers  []cmttypes.PrivValidator
	valSet   *cmttypes.ValidatorSet
	appHash  []byte
	baseTime time.Time
}

// NewBFTChain creates a chain with the given number of validators. Every
// block carries appHash as its application state root.
func NewBFTChain(chainID string, validators int, appHash []byte) *BFTChain {
	signers := make([]cmttypes.PrivValidator, 0, validators)
	vals := make([]*cmttypes.Validator, 0, validators)
	for i := 0; i < validators; i++ {
		pv := cmttypes.NewMockPV()
		pubKey, err := pv.GetPubKey()
		if err != nil {
			panic(err)
		}
		signers = append(signers, pv)
		vals = append(vals, cmttypes.NewValidator(pubKey, 100))
	}
	valSet := cmttypes.NewValidatorSet(vals)

	// Signing helpers expect the signer order to match the set order.
	ordered := make([]cmttypes.PrivValidator, len(signers))
	for i, val := range valSet.Validators {
		for _, pv := range signers {
			pubKey, err := pv.GetPubKey()
			if err != nil {
				panic(err)
			}
			if pubKey.Address().String() == val.Address.String() {
				ordered[i] = pv
				break
			}
		}
	}

	return &BFTChain{
		ChainID:  chainID,
		signers:  ordered,
		valSet:   valSet,
		appHash:  appHash,
		baseTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// LightBlock builds the signed light block at height. Calling it twice for
// the same height yields identical blocks.
func (c *BFTChain) LightBlock(height uint64) tendermint.LightBlock {
	h := int64(height)
	blockTime := c.baseTime.Add(time.Duration(height) * 5 * time.Second)

	header := cmttypes.Header{
		Version:            cmtversion.Consensus{Block: version.BlockProtocol, App: 1},
		ChainID:            c.ChainID,
		Height:             h,
		Time:               blockTime,
		LastBlockID:        makeBlockID(make([]byte, tmhash.Size), 10_000, make([]byte, tmhash.Size)),
		LastCommitHash:     tmhash.Sum([]byte(fmt.Sprintf("last_commit_hash/%d", height))),
		DataHash:           tmhash.Sum([]byte(fmt.Sprintf("data_hash/%d", height))),
		ValidatorsHash:     c.valSet.Hash(),
		NextValidatorsHash: c.valSet.Hash(),
		ConsensusHash:      tmhash.Sum([]byte("consensus_hash")),
		AppHash:            c.appHash,
		LastResultsHash:    tmhash.Sum([]byte("last_results_hash")),
		EvidenceHash:       tmhash.Sum([]byte("evidence_hash")),
		ProposerAddress:    c.valSet.Proposer.Address,
	}

	blockID := makeBlockID(header.Hash(), 3, tmhash.Sum([]byte("part_set")))
	voteSet := cmttypes.NewVoteSet(c.ChainID, h, 1, cmtproto.PrecommitType, c.valSet)
	extCommit, err := cmttypes.MakeExtCommit(blockID, h, 1, voteSet, c.signers, blockTime, false)
	if err != nil {
		panic(err)
	}

	return tendermint.LightBlock{
		SignedHeader: &cmttypes.SignedHeader{
			Header: &header,
			Commit: extCommit.ToCommit(),
		},
		Validators:     c.valSet,
		NextValidators: c.valSet,
	}
}

func makeBlockID(hash []byte, partSetSize uint32, partSetHash []byte) cmttypes.BlockID {
	return cmttypes.BlockID{
		Hash: hash,
		PartSetHeader: cmttypes.PartSetHeader{
			Total: partSetSize,
			Hash:  partSetHash,
		},
	}
}
