package buffer

// Buffer size constants
const (
	// DefaultInitialCapacity is the capacity allocated on first append (64KB)
	DefaultInitialCapacity = 65536

	// DefaultReadChunkSize is the chunk size used when filling a buffer from a reader (64KB)
	DefaultReadChunkSize = 65536
)
