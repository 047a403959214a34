package aggregation

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/backend/witness"

	"github.com/proofchain-labs/zk-light-client/zk"
)

// ProofSize is the raw proof length: A (64) ‖ B (128) ‖ C (64),
// uncompressed affine points on BN254.
const ProofSize = 2*curve.SizeOfG1AffineUncompressed + curve.SizeOfG2AffineUncompressed

// Proof is the terminal pairing-based proof over both upstream proofs.
// The public-input bytes and verification-key digest travel alongside the
// raw points rather than packed into them.
type Proof struct {
	// Proof holds the 256 raw point bytes.
	Proof []byte `json:"proof"`
	// PublicValues are the bytes the aggregation program committed.
	PublicValues []byte `json:"public_values"`
	// VKey is the hex form of the aggregation verification-key digest.
	VKey string `json:"vkey"`
}

// HashPublicValues derives the field element committing to the public
// bytes: SHA-256 with the top three bits cleared so the digest fits the
// BN254 scalar field.
func HashPublicValues(publicValues []byte) [32]byte {
	digest := sha256.Sum256(publicValues)
	digest[0] &= 0x1F
	return digest
}

// MarshalProof lays a gnark BN254 proof out in the raw 256-byte form.
func MarshalProof(proof *groth16bn254.Proof) []byte {
	a := proof.Ar.RawBytes()
	b := proof.Bs.RawBytes()
	c := proof.Krs.RawBytes()
	out := make([]byte, 0, ProofSize)
	out = append(out, a[:]...)
	out = append(out, b[:]...)
	out = append(out, c[:]...)
	return out
}

// Verify reconstructs the three proof points from the raw layout, derives
// the two public inputs from the embedded verification-key digest and the
// committed bytes, and checks the pairing equation against vk. It returns
// true only when the equation holds; there is no partial success.
func (p *Proof) Verify(vk groth16.VerifyingKey) (bool, error) {
	if len(p.Proof) != ProofSize {
		return false, fmt.Errorf("invalid proof length: expected %d bytes, got %d", ProofSize, len(p.Proof))
	}

	var proof groth16bn254.Proof
	if _, err := proof.Ar.SetBytes(p.Proof[:64]); err != nil {
		return false, fmt.Errorf("failed to decode proof point A: %w", err)
	}
	if _, err := proof.Bs.SetBytes(p.Proof[64:192]); err != nil {
		return false, fmt.Errorf("failed to decode proof point B: %w", err)
	}
	if _, err := proof.Krs.SetBytes(p.Proof[192:256]); err != nil {
		return false, fmt.Errorf("failed to decode proof point C: %w", err)
	}

	vkeyDigest, err := zk.ParseVKeyDigest(p.VKey)
	if err != nil {
		return false, err
	}
	publicWitness, err := buildPublicWitness(vkeyDigest, HashPublicValues(p.PublicValues))
	if err != nil {
		return false, err
	}

	if err := groth16.Verify(&proof, vk, publicWitness); err != nil {
		return false, fmt.Errorf("failed to verify groth16 proof: %w", err)
	}
	return true, nil
}

// buildPublicWitness fills a gnark witness with the two public inputs of
// the wrapped circuit: the program verification-key digest and the hash of
// the committed bytes.
func buildPublicWitness(vkeyDigest zk.VKeyDigest, committedDigest [32]byte) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}

	var vkeyElem, digestElem fr.Element
	vkeyBytes := vkeyDigest.Bytes()
	vkeyElem.SetBytes(vkeyBytes[:])
	digestElem.SetBytes(committedDigest[:])

	values := make(chan any, 2)
	values <- vkeyElem
	values <- digestElem
	close(values)

	if err := w.Fill(2, 0, values); err != nil {
		return nil, fmt.Errorf("failed to fill witness: %w", err)
	}
	return w, nil
}

// LoadVerifyingKey reads the globally known BN254 verifying key of the
// aggregation circuit from disk.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vk file: %w", err)
	}
	defer f.Close()

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("failed to read vk file: %w", err)
	}
	return vk, nil
}
