package reframe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zsiec/reframe/internal/reframe/buffer"
)

// Drive plays s from start seconds and feeds it src in read-sized chunks,
// following the seek the session asks for, then signals end of stream.
// It is the host loop for whole, seekable sources.
func Drive(ctx context.Context, s *Session, src io.ReaderAt, size int64, start float64) error {
	req, err := s.Play(ctx, start)
	if err != nil {
		return err
	}
	var off int64
	if req.Seek {
		off = req.Offset
	}

	chunk := make([]byte, buffer.DefaultReadChunkSize)
	for off < size {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.ReadAt(chunk, off)
		if n > 0 {
			if ferr := s.Feed(ctx, Fragment{Data: chunk[:n]}); ferr != nil {
				return ferr
			}
			off += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reframe: reading source at %d: %w", off, err)
		}
	}
	return s.EndOfStream(ctx)
}
