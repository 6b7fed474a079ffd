package decoderconfig

import (
	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/security"
)

const iacbVersion = 1

// MarshalIACB builds an IAConfigurationBox body: version, leb128 size of the
// descriptor OBUs, then the descriptors in stream order.
func MarshalIACB(elements []parser.Element) []byte {
	size := 0
	for _, el := range elements {
		size += len(el.Data)
	}
	out := make([]byte, 0, 1+security.LEB128Size(uint64(size))+size)
	out = append(out, iacbVersion)
	out = security.AppendLEB128(out, uint64(size))
	for _, el := range elements {
		out = append(out, el.Data...)
	}
	return out
}
