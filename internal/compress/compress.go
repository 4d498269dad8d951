package compress

// Codec names accepted in config and recorded on stored communications.
const (
	CodecNop    = "nop"
	CodecGZip   = "gzip"
	CodecBrotli = "brotli"
	CodecLZ4    = "lz4"
)

// Compress encodes communication content at rest.
type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// FromName returns the codec for the given name, defaulting to nop.
func FromName(name string) Compress {
	switch name {
	case CodecGZip:
		return NewGZip()
	case CodecBrotli:
		return NewBrotli()
	case CodecLZ4:
		return NewLZ4()
	default:
		return NewNop()
	}
}
