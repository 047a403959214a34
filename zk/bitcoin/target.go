package bitcoin

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// bitsToTarget expands the compact "bits" encoding into the full 256-bit
// target. A mantissa with the sign bit set decodes to zero, mirroring the
// consensus treatment of negative targets.
func bitsToTarget(bits [4]byte) *uint256.Int {
	compact := binary.LittleEndian.Uint32(bits[:])
	exponent := compact >> 24

	var mantissa uint32
	var shift uint
	if exponent <= 3 {
		mantissa = (compact & 0xFFFFFF) >> (8 * (3 - exponent))
	} else {
		mantissa = compact & 0xFFFFFF
		shift = uint(8 * (exponent - 3))
	}

	if mantissa > 0x7FFFFF {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Lsh(uint256.NewInt(uint64(mantissa)), shift)
}

// checkRetargetBits verifies the difficulty transition at an epoch
// boundary: the new target must equal the old one scaled by the actual
// epoch duration over the expected one, truncated to the precision the
// compact encoding of the proposed bits can express.
func checkRetargetBits(epochStart, epochEnd, proposed Header) error {
	elapsed := headerTime(epochEnd) - headerTime(epochStart)

	newTarget, overflow := new(uint256.Int).MulOverflow(bitsToTarget(epochStart.Bits), uint256.NewInt(uint64(elapsed)))
	if overflow {
		return fmt.Errorf("retarget overflow: old target times elapsed seconds exceeds 256 bits")
	}
	newTarget.Div(newTarget, uint256.NewInt(ExpectedEpochSeconds))

	compact := binary.LittleEndian.Uint32(proposed.Bits[:])
	exponent := compact >> 24
	mantissa := compact & 0xFFFFFF
	if mantissa > 0x7FFFFF {
		mantissa >>= 8
	}

	if exponent <= 3 {
		want := new(uint256.Int).Rsh(uint256.NewInt(uint64(mantissa)), uint(8*(3-exponent)))
		if newTarget.Cmp(want) != 0 {
			return fmt.Errorf("new target bits mismatch: recomputed %s, proposed header encodes %s", newTarget.Hex(), want.Hex())
		}
		return nil
	}

	truncated := new(uint256.Int).Rsh(newTarget, uint(8*(exponent-3)))
	if truncated.Cmp(uint256.NewInt(uint64(mantissa))) != 0 {
		return fmt.Errorf("new target bits mismatch: recomputed %s (truncated %s), proposed mantissa 0x%06x", newTarget.Hex(), truncated.Hex(), mantissa)
	}
	return nil
}

func headerTime(h Header) uint32 {
	return binary.LittleEndian.Uint32(h.Time[:])
}
