package store

import "encoding/binary"

// EncodeInt64 renders v the same way Incr does internally, so callers that
// need to Set a counter word or state integer directly (bypassing Incr) stay
// byte-compatible with it.
func EncodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

// DecodeInt64 reads back a value written by EncodeInt64 or by Incr. A
// missing or malformed value decodes to 0.
func DecodeInt64(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// Counter byte offsets within the packed 32-bit counter word, LSB to MSB.
const (
	ShiftSuccess = 0
	ShiftHTTP    = 8
	ShiftTCP     = 16
	ShiftTimeout = 24
)

// failureBytesMask covers bytes 1-3 (HTTP, TCP, timeout); successByteMask
// covers byte 0.
const (
	successByteMask  int64 = 0x000000ff
	failureBytesMask int64 = 0xffffff00
)

// ExtractCounter returns the 8-bit counter at the given shift (0, 8, 16, or 24).
func ExtractCounter(word int64, shift uint) uint8 {
	return uint8((word >> shift) & 0xff)
}

// PackCounter builds a 32-bit counter word from its four byte components.
func PackCounter(success, http, tcp, timeout uint8) int64 {
	return int64(success) | int64(http)<<ShiftHTTP | int64(tcp)<<ShiftTCP | int64(timeout)<<ShiftTimeout
}

// MaskForSuccess zeroes the three failure bytes, preserving the success byte.
func MaskForSuccess(word int64) int64 {
	return word & successByteMask
}

// MaskForFailure zeroes the success byte, preserving all three failure bytes.
func MaskForFailure(word int64) int64 {
	return word & failureBytesMask
}
