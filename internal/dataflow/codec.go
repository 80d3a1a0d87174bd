package dataflow

// Codec moves samples of type T in and out of the shared payload area.
// Decode must copy: the payload is rewritten once the read is acknowledged.
type Codec[T any] interface {
	// Size returns the encoded length of v.
	Size(v T) int
	// Encode writes v into dst, which is exactly Size(v) bytes.
	Encode(dst []byte, v T) error
	// Decode builds a sample from src.
	Decode(src []byte) (T, error)
}
