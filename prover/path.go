package prover

import (
	"os"
	"path/filepath"
)

// BasePath resolves where everything written on disk lives.
type BasePath struct {
	root string
}

// NewBasePath roots the layout at an explicit directory.
func NewBasePath(root string) BasePath {
	return BasePath{root: root}
}

// DefaultBasePath roots the layout in the user cache directory, falling
// back to a hidden directory under the working tree when there is none.
func DefaultBasePath() BasePath {
	cache, err := os.UserCacheDir()
	if err != nil {
		return BasePath{root: ".zk-light-client"}
	}
	return BasePath{root: filepath.Join(cache, "zk-light-client")}
}

// ConsensusProofDir is where per-height consensus proofs for a chain live.
func (b BasePath) ConsensusProofDir(chainID string) string {
	return filepath.Join(b.root, "proofs", chainID, "consensus")
}

// InclusionProofDir is where per-height transaction inclusion proofs live.
func (b BasePath) InclusionProofDir(chainID string) string {
	return filepath.Join(b.root, "proofs", chainID, "inclusion")
}
