package decoderconfig

import (
	"github.com/zsiec/reframe/internal/reframe/parser"
)

const av1CMarkerVersion = 0x81 // marker=1, version=1

// MarshalAV1C builds an AV1CodecConfigurationRecord: four fixed bytes taken
// from the sequence header followed by the configuration OBUs.
func MarshalAV1C(seq *parser.SequenceInfo, elements []parser.Element) []byte {
	size := 4
	for _, el := range elements {
		size += len(el.Data)
	}
	out := make([]byte, 4, size)
	out[0] = av1CMarkerVersion
	if seq != nil {
		out[1] = seq.Profile<<5 | seq.Level&0x1F
		out[2] = seq.Tier<<7 |
			bit(seq.HighBitDepth)<<6 |
			bit(seq.TwelveBit)<<5 |
			bit(seq.Monochrome)<<4 |
			bit(seq.SubsamplingX)<<3 |
			bit(seq.SubsamplingY)<<2 |
			seq.ChromaSamplePosition&0x03
	}
	// out[3]: no initial presentation delay
	for _, el := range elements {
		if el.Kind == parser.ElementAV1SequenceHeader || el.Kind == parser.ElementAV1Metadata {
			out = append(out, el.Data...)
		}
	}
	return out
}

func bit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
