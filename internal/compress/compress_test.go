package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"id":1,"order":0,"work_order":3}`), 64)

	for _, name := range []string{"none", "gzip", "lz4", "brotli"} {
		t.Run(name, func(t *testing.T) {
			codec, err := New(name)
			require.NoError(t, err)

			encoded, err := codec.Encode(payload)
			require.NoError(t, err)
			if name != "none" {
				assert.Less(t, len(encoded), len(payload))
			}

			decoded, err := codec.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestNewUnknownCodec(t *testing.T) {
	_, err := New("zstd")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
