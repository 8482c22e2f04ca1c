package compress

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCodec = errors.New("unknown compression codec")

// Compress encodes and decodes opaque payloads, such as cached link listings.
type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

var (
	_ Compress = Nop{}
	_ Compress = GZip{}
	_ Compress = LZ4{}
	_ Compress = Brotli{}
)

// New returns the codec registered under name: none, gzip, lz4 or brotli.
func New(name string) (Compress, error) {
	switch strings.ToLower(name) {
	case "", "none", "nop":
		return NewNop(), nil
	case "gzip":
		return NewGZip(), nil
	case "lz4":
		return NewLZ4(), nil
	case "brotli":
		return NewBrotli(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
}
