package decoderconfig

import (
	"encoding/binary"
)

// MasteringDisplayToMPEG converts AV1 metadata_hdr_mdcv (primaries in R,G,B
// order as 0.16 fixed point, luminance as 24.8 and 18.14 fixed point) into the
// MPEG mastering display colour volume layout (G,B,R order in 0.00002 units,
// luminance in 0.0001 cd/m2).
func MasteringDisplayToMPEG(av1 []byte) []byte {
	if len(av1) < 24 {
		return nil
	}
	chroma := func(off int) uint16 {
		v := uint64(binary.BigEndian.Uint16(av1[off : off+2]))
		return uint16(v * 50000 / 65536)
	}

	out := make([]byte, 24)
	// AV1 index 0,1,2 is R,G,B; MPEG wants G,B,R
	for i, src := range []int{1, 2, 0} {
		binary.BigEndian.PutUint16(out[i*4:], chroma(src*4))
		binary.BigEndian.PutUint16(out[i*4+2:], chroma(src*4+2))
	}
	binary.BigEndian.PutUint16(out[12:], chroma(12))
	binary.BigEndian.PutUint16(out[14:], chroma(14))

	maxLum := uint64(binary.BigEndian.Uint32(av1[16:20]))
	minLum := uint64(binary.BigEndian.Uint32(av1[20:24]))
	binary.BigEndian.PutUint32(out[16:], uint32(maxLum*10000/256))
	binary.BigEndian.PutUint32(out[20:], uint32(minLum*10000/16384))
	return out
}
