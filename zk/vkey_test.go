package zk

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVKeyDigestRoundTrip(t *testing.T) {
	digest := VKeyDigest{0x00112233, 0x44556677, 0x8899AABB, 0xCCDDEEFF, 1, 2, 3, 0xFFFFFFFF}

	b := digest.Bytes()
	require.Equal(t, digest, VKeyDigestFromBytes(b))

	parsed, err := ParseVKeyDigest(digest.String())
	require.NoError(t, err)
	require.Equal(t, digest, parsed)
}

func TestVKeyDigestBytesLayout(t *testing.T) {
	digest := VKeyDigest{0x01020304}
	b := digest.Bytes()
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, b[:4])
	require.Equal(t, "0x0102030400000000000000000000000000000000000000000000000000000000", digest.String())
}

func TestParseVKeyDigestErrors(t *testing.T) {
	_, err := ParseVKeyDigest("0x1234")
	require.ErrorContains(t, err, "invalid vkey digest length")

	_, err = ParseVKeyDigest("0xzz")
	require.ErrorContains(t, err, "failed to decode vkey digest hex")
}

func TestSha256(t *testing.T) {
	// SHA-256("abc") from the FIPS 180 test vectors.
	got := Sha256([]byte("abc"))
	require.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		hex.EncodeToString(got[:]))
}
