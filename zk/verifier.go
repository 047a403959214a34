package zk

// ProofVerifier is the recursive-verification capability a proving backend
// exposes to programs: it answers whether a proof committing to
// committedHash has been produced under the given verification key.
// Any non-nil error means the recursive chain is broken or forged and the
// calling program must not produce an output.
type ProofVerifier interface {
	Verify(vkey VKeyDigest, committedHash [32]byte) error
}
