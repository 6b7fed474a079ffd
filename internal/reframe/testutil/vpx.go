package testutil

// VP9Frame builds a profile 0 VP9 frame: a key frame carries sync code, color
// config and frame size; an inter frame carries the leading flags only. size
// filler bytes follow the header.
func VP9Frame(key bool, width, height int, size int) []byte {
	var w BitWriter
	w.Write(2, 2) // frame_marker
	w.Write(0, 1) // profile_low_bit
	w.Write(0, 1) // profile_high_bit
	w.Flag(false) // show_existing_frame
	w.Flag(!key)  // frame_type
	w.Flag(true)  // show_frame
	w.Flag(false) // error_resilient_mode
	if key {
		w.Write(0x49, 8)
		w.Write(0x83, 8)
		w.Write(0x42, 8)
		w.Write(1, 3) // color_space BT.601
		w.Flag(false) // color_range
		w.Write(uint64(width-1), 16)
		w.Write(uint64(height-1), 16)
		w.Flag(false) // render_and_frame_size_different
	} else {
		w.Flag(false) // intra_only
		w.Write(0, 2) // reset_frame_context
	}
	out := w.Bytes()
	for i := 0; i < size; i++ {
		out = append(out, byte(0x11+i%0x40))
	}
	return out
}

// VP9Superframe packs frames with a trailing index using bytesPerSize bytes
// per frame size.
func VP9Superframe(bytesPerSize int, frames ...[]byte) []byte {
	marker := byte(0xC0) | byte(bytesPerSize-1)<<3 | byte(len(frames)-1)
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}
	out = append(out, marker)
	for _, f := range frames {
		n := len(f)
		for b := 0; b < bytesPerSize; b++ {
			out = append(out, byte(n>>(8*b)))
		}
	}
	return append(out, marker)
}

// VP8Frame builds a VP8 frame. Key frames carry the start code and dimensions.
func VP8Frame(key bool, width, height int, size int) []byte {
	var out []byte
	if key {
		out = []byte{0x00, 0x00, 0x00, 0x9D, 0x01, 0x2A,
			byte(width), byte(width >> 8), byte(height), byte(height >> 8)}
	} else {
		out = []byte{0x01, 0x00, 0x00}
	}
	for i := 0; i < size; i++ {
		out = append(out, byte(i))
	}
	return out
}

// VP9Profile1KeyFrame builds a profile 1 key frame, which signals its chroma
// subsampling explicitly.
func VP9Profile1KeyFrame(width, height int, subsamplingX, subsamplingY bool, size int) []byte {
	var w BitWriter
	w.Write(2, 2) // frame_marker
	w.Write(1, 1) // profile_low_bit
	w.Write(0, 1) // profile_high_bit
	w.Flag(false) // show_existing_frame
	w.Flag(false) // frame_type
	w.Flag(true)  // show_frame
	w.Flag(false) // error_resilient_mode
	w.Write(0x49, 8)
	w.Write(0x83, 8)
	w.Write(0x42, 8)
	w.Write(2, 3) // color_space BT.709
	w.Flag(true)  // color_range
	w.Flag(subsamplingX)
	w.Flag(subsamplingY)
	w.Flag(false) // reserved_zero
	w.Write(uint64(width-1), 16)
	w.Write(uint64(height-1), 16)
	w.Flag(false) // render_and_frame_size_different
	out := w.Bytes()
	for i := 0; i < size; i++ {
		out = append(out, byte(0x21+i%0x30))
	}
	return out
}
