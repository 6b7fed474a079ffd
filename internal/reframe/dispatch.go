package reframe

import (
	"fmt"

	"github.com/zsiec/reframe/internal/reframe/index"
	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// parserFactory binds the unit grammar of one syntax. Every call returns a
// parser with its own cross-unit state, so the indexer never shares state
// with the session.
type parserFactory func(codec types.CodecType, opts parser.AV1Options) index.ParseFunc

var handlers = [types.SyntaxUnsupported + 1]parserFactory{
	types.SyntaxRawUnitSequence: func(_ types.CodecType, opts parser.AV1Options) index.ParseFunc {
		return func(data []byte, boundary bool) parser.Result {
			return parser.ParseSection5(data, boundary, opts)
		}
	},
	types.SyntaxAnnexByteStream: func(_ types.CodecType, opts parser.AV1Options) index.ParseFunc {
		return func(data []byte, boundary bool) parser.Result {
			return parser.ParseAnnexB(data, boundary, opts)
		}
	},
	types.SyntaxIndexedFrameContainer: func(codec types.CodecType, opts parser.AV1Options) index.ParseFunc {
		return func(data []byte, boundary bool) parser.Result {
			return parser.ParseIVFRecord(codec, data, boundary, opts)
		}
	},
	types.SyntaxRawFixedCodec: func(codec types.CodecType, _ parser.AV1Options) index.ParseFunc {
		return func(data []byte, boundary bool) parser.Result {
			return parser.ParseRawVPx(codec, data, boundary)
		}
	},
	types.SyntaxObjectAudio: func(types.CodecType, parser.AV1Options) index.ParseFunc {
		return parser.NewIAMFState().ParseIAMF
	},
}

func newParser(syntax types.Syntax, codec types.CodecType, opts parser.AV1Options) (index.ParseFunc, error) {
	if int(syntax) >= len(handlers) || handlers[syntax] == nil {
		return nil, fmt.Errorf("%w: no unit parser for %s", ErrUnsupportedFormat, syntax)
	}
	return handlers[syntax](codec, opts), nil
}
