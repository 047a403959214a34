package prover

import (
	"fmt"
	"os"
	"path/filepath"

	errorsmod "cosmossdk.io/errors"
	"github.com/fxamacker/cbor/v2"
)

// Store persists one proof file per proven height. Files are append-only:
// a height is written once and later steps read it back as an immutable
// input. Concurrent re-proving of the same height must be serialized by
// the caller.
type Store struct {
	dir string
}

// NewStore creates the proof directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errorsmod.Wrapf(ErrSaveProof, "failed to create proof directory %s: %v", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the proof file path for a height.
func (s *Store) Path(height uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.bin", height))
}

// Save writes the proof for a height.
func (s *Store) Save(height uint64, proof *Proof) error {
	data, err := cbor.Marshal(proof)
	if err != nil {
		return errorsmod.Wrapf(ErrSaveProof, "failed to encode proof for height %d: %v", height, err)
	}
	if err := os.WriteFile(s.Path(height), data, 0o644); err != nil {
		return errorsmod.Wrapf(ErrSaveProof, "failed to write %s: %v", s.Path(height), err)
	}
	return nil
}

// Load reads the proof for a height. A missing file is reported as
// ErrProofNotFound, distinct from an unreadable or undecodable one.
func (s *Store) Load(height uint64) (*Proof, error) {
	path := s.Path(height)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errorsmod.Wrap(ErrProofNotFound, path)
		}
		return nil, errorsmod.Wrapf(ErrLoadProof, "failed to stat %s: %v", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorsmod.Wrapf(ErrLoadProof, "failed to read %s: %v", path, err)
	}
	var proof Proof
	if err := cbor.Unmarshal(data, &proof); err != nil {
		return nil, errorsmod.Wrapf(ErrLoadProof, "failed to decode %s: %v", path, err)
	}
	return &proof, nil
}

// LoadCompressed loads a proof and requires the compressed representation.
func (s *Store) LoadCompressed(height uint64) (*Proof, error) {
	proof, err := s.Load(height)
	if err != nil {
		return nil, err
	}
	if proof.Mode != ProofModeCompressed {
		return nil, errorsmod.Wrapf(ErrBadProofMode, "expected compressed proof at height %d, got %s", height, proof.Mode)
	}
	return proof, nil
}
