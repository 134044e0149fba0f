package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAllAlgorithms(t *testing.T) {
	original := bytes.Repeat([]byte("m.key\x00x\x01y\x02level level level "), 64)

	for _, algorithm := range Algorithms {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(algorithm), func(t *testing.T) {
				comp, err := NewCompressor(&Config{Algorithm: algorithm, Level: level})
				require.NoError(t, err)
				assert.Equal(t, algorithm, comp.Algorithm())

				compressed, err := comp.Compress(original)
				require.NoError(t, err)

				decompressed, err := comp.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, original, decompressed)

				if algorithm != None {
					assert.Less(t, len(compressed), len(original))
				}
			})
		}
	}
}

func TestEmptyInput(t *testing.T) {
	for _, algorithm := range Algorithms {
		comp, err := NewCompressor(&Config{Algorithm: algorithm})
		require.NoError(t, err)

		compressed, err := comp.Compress(nil)
		require.NoError(t, err)
		decompressed, err := comp.Decompress(compressed)
		require.NoError(t, err)
		assert.Empty(t, decompressed, string(algorithm))
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := NewCompressor(&Config{Algorithm: "brotli"})
	assert.Error(t, err)
	assert.False(t, Supported("brotli"))
	assert.Equal(t, -1, ID("brotli"))
}

func TestStableIDs(t *testing.T) {
	assert.Equal(t, 0, ID(None))
	assert.Equal(t, 4, ID(Zstd))
	assert.True(t, Supported(S2))
}

func TestNilConfigUsesDefault(t *testing.T) {
	comp, err := NewCompressor(nil)
	require.NoError(t, err)
	assert.Equal(t, Zstd, comp.Algorithm())
}
