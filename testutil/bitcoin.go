package testutil

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/proofchain-labs/zk-light-client/zk/bitcoin"
)

// EasyBits is a compact difficulty low enough that mining a test header
// takes a handful of nonce attempts.
var EasyBits = [4]byte{0xFF, 0xFF, 0x7F, 0x20}

// MineChain builds a linked header chain starting at startHeight, one
// header per height, each mined until its hash satisfies the compact
// target carried in bits. Timestamps advance by the expected block
// interval and the merkle root of each header is a deterministic function
// of its height.
func MineChain(startHeight uint64, n int, bits [4]byte) []bitcoin.Header {
	const baseTime = uint32(1_700_000_000)

	headers := make([]bitcoin.Header, 0, n)
	var prevHash [32]byte
	for i := 0; i < n; i++ {
		height := startHeight + uint64(i)
		header := bitcoin.Header{
			Height:        height,
			Version:       [4]byte{0x04, 0x00, 0x00, 0x00},
			PrevBlockHash: prevHash,
			MerkleRoot:    sha256.Sum256(binary.LittleEndian.AppendUint64([]byte("tx_merkle_root/"), height)),
			Bits:          bits,
		}
		binary.LittleEndian.PutUint32(header.Time[:], baseTime+uint32(height)*bitcoin.BlockInterval)
		headers = append(headers, MineHeader(header))
		prevHash = bitcoin.ToLittleEndian(headers[i].BlockHash())
	}
	return headers
}

// MineHeader searches the nonce space until the header hash meets its own
// compact target.
func MineHeader(header bitcoin.Header) bitcoin.Header {
	target := compactTarget(header.Bits)
	for nonce := uint32(0); ; nonce++ {
		binary.LittleEndian.PutUint32(header.Nonce[:], nonce)
		hash := header.BlockHash()
		if new(uint256.Int).SetBytes(hash[:]).Cmp(target) <= 0 {
			return header
		}
	}
}

func compactTarget(bits [4]byte) *uint256.Int {
	compact := binary.LittleEndian.Uint32(bits[:])
	exponent := compact >> 24
	mantissa := uint64(compact & 0xFFFFFF)
	if exponent <= 3 {
		return uint256.NewInt(mantissa >> (8 * (3 - exponent)))
	}
	return new(uint256.Int).Lsh(uint256.NewInt(mantissa), uint(8*(exponent-3)))
}
