package security

// Size and count limits applied while walking untrusted bitstreams.
const (
	// AV1 caps leb128() at 8 bytes and the decoded value at 2^32-1.
	MaxLEB128Bytes = 8
	MaxLEB128Value = (1 << 32) - 1

	MaxUnitSize      = 64 * 1024 * 1024  // 64MB max for a single coded unit
	MaxBufferSize    = 256 * 1024 * 1024 // 256MB max reassembly accumulation
	MaxOBUsPerUnit   = 4096              // Max OBUs in one temporal unit
	MaxSuperframeLen = 8                 // VP9 superframe index carries at most 8 frames

	// IVF records carry a 4-byte size; anything larger than a unit is structurally impossible here.
	MaxIVFFrameSize = MaxUnitSize
)

// Error messages
const (
	ErrMsgUnitTooLarge   = "unit size exceeds maximum allowed: %d > %d"
	ErrMsgBufferTooLarge = "buffer size exceeds maximum allowed: %d > %d"
	ErrMsgTooManyOBUs    = "too many OBUs in temporal unit: %d > %d"
	ErrMsgInvalidBounds  = "invalid bounds: offset %d + size %d > buffer length %d"
)
