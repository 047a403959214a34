package testutil

import (
	"encoding/binary"
	"fmt"

	commitmenttypes "github.com/cosmos/ibc-go/v10/modules/core/23-commitment/types"
	ics23 "github.com/cosmos/ics23/go"

	"github.com/proofchain-labs/zk-light-client/zk/membership"
)

// MembershipFixture is a synthetic two-store state tree with one key per
// store and hand-built existence proofs that verify under the SDK proof
// specs.
type MembershipFixture struct {
	// AppHash is the root the proofs verify against.
	AppHash [32]byte
	// Pairs holds one valid proof pair per store, in store order.
	Pairs []membership.ProofPair
}

// NewMembershipFixture builds the fixture. Each store holds a single-leaf
// iavl tree, and the store roots hash into a two-leaf simple merkle tree.
func NewMembershipFixture() (MembershipFixture, error) {
	stores := []struct {
		name  string
		key   []byte
		value []byte
	}{
		{name: "bank", key: []byte{0x02, 0x0A}, value: []byte("balance/100")},
		{name: "staking", key: []byte{0x51, 0x01}, value: []byte("validator/1")},
	}

	iavlProofs := make([]*ics23.ExistenceProof, len(stores))
	storeLeaves := make([][]byte, len(stores))
	for i, s := range stores {
		// A single-leaf iavl tree: the store root is the leaf hash. The
		// prefix encodes node height 0, size 1 and version 1 as signed
		// varints.
		iavlProofs[i] = &ics23.ExistenceProof{
			Key:   s.key,
			Value: s.value,
			Leaf: &ics23.LeafOp{
				Hash:         ics23.HashOp_SHA256,
				PrehashValue: ics23.HashOp_SHA256,
				Length:       ics23.LengthOp_VAR_PROTO,
				Prefix:       binary.AppendVarint(binary.AppendVarint(binary.AppendVarint(nil, 0), 1), 1),
			},
		}
		storeRoot, err := iavlProofs[i].Calculate()
		if err != nil {
			return MembershipFixture{}, fmt.Errorf("failed to compute store root for %s: %w", s.name, err)
		}
		leaf, err := simpleTreeLeafOp().Apply([]byte(s.name), storeRoot)
		if err != nil {
			return MembershipFixture{}, fmt.Errorf("failed to hash store leaf for %s: %w", s.name, err)
		}
		storeLeaves[i] = leaf
	}

	// The simple merkle level over the two store leaves: the left child's
	// sibling travels in the suffix, the right child's in the prefix.
	paths := [][]*ics23.InnerOp{
		{{Hash: ics23.HashOp_SHA256, Prefix: []byte{0x01}, Suffix: storeLeaves[1]}},
		{{Hash: ics23.HashOp_SHA256, Prefix: append([]byte{0x01}, storeLeaves[0]...)}},
	}

	fixture := MembershipFixture{}
	for i, s := range stores {
		storeRoot, err := iavlProofs[i].Calculate()
		if err != nil {
			return MembershipFixture{}, err
		}
		tmProof := &ics23.ExistenceProof{
			Key:   []byte(s.name),
			Value: storeRoot,
			Leaf:  simpleTreeLeafOp(),
			Path:  paths[i],
		}
		root, err := tmProof.Calculate()
		if err != nil {
			return MembershipFixture{}, fmt.Errorf("failed to compute app hash via %s: %w", s.name, err)
		}
		copy(fixture.AppHash[:], root)

		merkleProof := commitmenttypes.MerkleProof{
			Proofs: []*ics23.CommitmentProof{
				{Proof: &ics23.CommitmentProof_Exist{Exist: iavlProofs[i]}},
				{Proof: &ics23.CommitmentProof_Exist{Exist: tmProof}},
			},
		}
		rawProof, err := merkleProof.Marshal()
		if err != nil {
			return MembershipFixture{}, fmt.Errorf("failed to encode merkle proof for %s: %w", s.name, err)
		}
		fixture.Pairs = append(fixture.Pairs, membership.ProofPair{
			KV: membership.KVPair{
				Keys:  [][]byte{[]byte(s.name), s.key},
				Value: s.value,
			},
			RawProof: rawProof,
		})
	}
	return fixture, nil
}

func simpleTreeLeafOp() *ics23.LeafOp {
	return &ics23.LeafOp{
		Hash:         ics23.HashOp_SHA256,
		PrehashValue: ics23.HashOp_SHA256,
		Length:       ics23.LengthOp_VAR_PROTO,
		Prefix:       []byte{0x00},
	}
}
