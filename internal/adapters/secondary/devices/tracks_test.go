package devices

import (
	"testing"

	"github.com/pion/mediadevices/pkg/wave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeS16LE(t *testing.T) {
	t.Run("int16 samples", func(t *testing.T) {
		chunk := &wave.Int16Interleaved{Data: []int16{1, -1, 0x1234}}
		out, err := encodeS16LE(chunk)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x00, 0xff, 0xff, 0x34, 0x12}, out)
	})

	t.Run("float samples are clamped", func(t *testing.T) {
		chunk := &wave.Float32Interleaved{Data: []float32{0, 1, -2}}
		out, err := encodeS16LE(chunk)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x00, 0xff, 0x7f, 0x01, 0x80}, out)
	})

	t.Run("unsupported chunk", func(t *testing.T) {
		_, err := encodeS16LE(&wave.Int16NonInterleaved{Data: [][]int16{{1}}})
		assert.Error(t, err)
	})
}
