package compress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodecRoundTrip(t *testing.T) {
	content := []byte(strings.Repeat("<p>Please review the attached invoice.</p>\n", 50))

	codecs := map[string]Compress{
		CodecNop:    NewNop(),
		CodecGZip:   NewGZip(),
		CodecBrotli: NewBrotli(),
		CodecLZ4:    NewLZ4(),
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			encoded, err := codec.Encode(content)
			assert.NoError(t, err)

			decoded, err := codec.Decode(encoded)
			assert.NoError(t, err)
			assert.Equal(t, content, decoded)
		})
	}
}

func TestFromName(t *testing.T) {
	assert.IsType(t, GZip{}, FromName(CodecGZip))
	assert.IsType(t, Brotli{}, FromName(CodecBrotli))
	assert.IsType(t, LZ4{}, FromName(CodecLZ4))
	assert.IsType(t, Nop{}, FromName(CodecNop))
	assert.IsType(t, Nop{}, FromName(""))
	assert.IsType(t, Nop{}, FromName("zstd"))
}
