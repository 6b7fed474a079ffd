package testutil

import (
	"encoding/binary"

	"github.com/zsiec/reframe/internal/reframe/security"
)

// IAMF OBU types used by the builders
const (
	IAMFCodecConfig     = 0
	IAMFAudioElement    = 1
	IAMFMixPresentation = 2
	IAMFParameterBlock  = 3
	IAMFTemporalDelim   = 4
	IAMFAudioFrameID0   = 6
	IAMFSequenceHeader  = 31
)

// IAMFOBU builds an IAMF OBU without trimming or extension fields.
func IAMFOBU(obuType uint8, payload []byte) []byte {
	out := []byte{obuType << 3}
	out = security.AppendLEB128(out, uint64(len(payload)))
	return append(out, payload...)
}

// IAMFTrimmedOBU builds an IAMF OBU carrying trimming fields.
func IAMFTrimmedOBU(obuType uint8, trimEnd, trimStart uint64, payload []byte) []byte {
	body := security.AppendLEB128(nil, trimEnd)
	body = security.AppendLEB128(body, trimStart)
	body = append(body, payload...)
	out := []byte{obuType<<3 | 0x02}
	out = security.AppendLEB128(out, uint64(len(body)))
	return append(out, body...)
}

// IAMFSequenceHeaderOBU builds an IA sequence header (simple profile).
func IAMFSequenceHeaderOBU() []byte {
	return IAMFOBU(IAMFSequenceHeader, []byte{'i', 'a', 'm', 'f', 0, 0})
}

// IAMFOpusCodecConfig builds an Opus codec config descriptor.
func IAMFOpusCodecConfig(id uint64, samplesPerFrame uint64, roll int16, preSkip uint16) []byte {
	p := security.AppendLEB128(nil, id)
	p = append(p, 'O', 'p', 'u', 's')
	p = security.AppendLEB128(p, samplesPerFrame)
	p = binary.BigEndian.AppendUint16(p, uint16(roll))
	// OpusHead without magic: version, channels, pre_skip, input rate, gain, mapping family
	p = append(p, 1, 2)
	p = binary.BigEndian.AppendUint16(p, preSkip)
	p = binary.BigEndian.AppendUint32(p, 48000)
	p = append(p, 0, 0, 0)
	return IAMFOBU(IAMFCodecConfig, p)
}

// IAMFAudioElementOBU builds an audio element with consecutive substream ids from 0.
func IAMFAudioElementOBU(id, codecConfigID uint64, substreams int) []byte {
	p := security.AppendLEB128(nil, id)
	p = append(p, 0) // audio_element_type channel-based
	p = security.AppendLEB128(p, codecConfigID)
	p = security.AppendLEB128(p, uint64(substreams))
	for i := 0; i < substreams; i++ {
		p = security.AppendLEB128(p, uint64(i))
	}
	p = append(p, 0) // num_parameters
	return IAMFOBU(IAMFAudioElement, p)
}

// IAMFMixPresentationOBU builds a minimal mix presentation descriptor.
func IAMFMixPresentationOBU(id uint64) []byte {
	p := security.AppendLEB128(nil, id)
	return IAMFOBU(IAMFMixPresentation, append(p, 0, 0))
}

// IAMFAudioFrame builds an implicit-id audio frame for substream id (0..17).
func IAMFAudioFrame(substream uint8, size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(substream + uint8(i))
	}
	return IAMFOBU(IAMFAudioFrameID0+substream, payload)
}

// IAMFDescriptors returns the descriptor set for a stream with one audio
// element of substreams substreams.
func IAMFDescriptors(samplesPerFrame uint64, substreams int) []byte {
	var out []byte
	out = append(out, IAMFSequenceHeaderOBU()...)
	out = append(out, IAMFOpusCodecConfig(0, samplesPerFrame, -4, 312)...)
	out = append(out, IAMFAudioElementOBU(1, 0, substreams)...)
	out = append(out, IAMFMixPresentationOBU(2)...)
	return out
}
