// Package encoder records session audio. The original front-end kept a
// media recorder running on the stream; here captured PCM is encoded to FLAC.
package encoder

const (
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder consumes mono 16-bit blocks.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}
