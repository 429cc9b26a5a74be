package transport

import "io"

// ChunkWriter fragments every write into pieces of at most Size bytes.
// The receiver sees the same byte stream as from a single write.
type ChunkWriter struct {
	T    Transport
	Size int

	// Writes counts the socket writes issued so far
	Writes int
}

// NewChunkWriter returns a writer that fragments at BufSize
func NewChunkWriter(t Transport) *ChunkWriter {
	return &ChunkWriter{T: t, Size: BufSize}
}

// Write implements io.Writer
func (w *ChunkWriter) Write(p []byte) (int, error) {
	size := w.Size
	if size <= 0 {
		size = BufSize
	}

	written := 0
	for written < len(p) {
		end := written + size
		if end > len(p) {
			end = len(p)
		}
		n, err := w.T.Write(p[written:end])
		written += n
		w.Writes++
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Stream copies r to the transport one buffer at a time
func (w *ChunkWriter) Stream(r io.Reader) (int64, error) {
	size := w.Size
	if size <= 0 {
		size = BufSize
	}
	return io.CopyBuffer(writerOnly{w}, r, make([]byte, size))
}

// writerOnly hides ReadFrom implementations so CopyBuffer uses our buffer
type writerOnly struct {
	io.Writer
}
