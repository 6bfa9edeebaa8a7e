package remote

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noiseablate/internal/channel"
)

func sampleView(t *testing.T) *channel.View {
	t.Helper()
	v, err := channel.FromRows([][]float32{
		{1, 2, float32(math.Inf(1))},
		{4, -5, 6.5},
	})
	require.NoError(t, err)
	v.Mask[1] = true
	v.Mask[5] = true
	v.Device = channel.Device{Kind: "cpu", Index: 2}
	v.Meta = channel.Meta{
		CoarseChannel: 7,
		FirstFreqMHz:  1420.4,
		FreqStepMHz:   -2.79e-6,
		SampleTimeSec: 18.25,
		SourceName:    "VOYAGER-1",
	}
	return v
}

func TestFrame_ViewSurvivesEncoding(t *testing.T) {
	v := sampleView(t)
	b, err := encodeView(v)
	require.NoError(t, err)

	got, err := decodeView(b)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestFrame_CallCarriesParameters(t *testing.T) {
	v := sampleView(t)
	b, err := encodeCall(map[string]any{"lower": 0.05, "iterations": 3}, v)
	require.NoError(t, err)

	params, got, err := decodeCall(b)
	require.NoError(t, err)
	assert.Equal(t, 0.05, params.GetFields()["lower"].GetNumberValue())
	assert.Equal(t, 3.0, params.GetFields()["iterations"].GetNumberValue())
	assert.Equal(t, v, got)
}

func TestFrame_RejectsMalformed(t *testing.T) {
	b, err := encodeView(sampleView(t))
	require.NoError(t, err)

	for name, frame := range map[string][]byte{
		"empty":          nil,
		"short header":   {0xff, 0, 0, 0, 1},
		"truncated data": b[:len(b)-3],
		"trailing bytes": append(append([]byte(nil), b...), 0),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeView(frame)
			assert.ErrorIs(t, err, ErrBadFrame)
		})
	}
}

// withShape rewrites the rows and cols words of an encoded frame.
func withShape(t *testing.T, b []byte, rows, cols uint32) []byte {
	t.Helper()
	out := append([]byte(nil), b...)
	off := 4 + int(binary.LittleEndian.Uint32(out))
	binary.LittleEndian.PutUint32(out[off:], rows)
	binary.LittleEndian.PutUint32(out[off+4:], cols)
	return out
}

func TestFrame_RejectsOversizedShape(t *testing.T) {
	b, err := encodeView(sampleView(t))
	require.NoError(t, err)

	for name, shape := range map[string][2]uint32{
		"zero rows":        {0, 3},
		"max both axes":    {math.MaxUint32, math.MaxUint32},
		"max rows":         {math.MaxUint32, 1},
		"wraps in 32 bit":  {1 << 16, 1 << 16},
		"one row too many": {3, 3},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeView(withShape(t, b, shape[0], shape[1]))
			assert.ErrorIs(t, err, ErrBadFrame)
		})
	}

	v, err := decodeView(withShape(t, b, 3, 2))
	require.NoError(t, err, "a transposed shape with the same sample count still decodes")
	assert.Equal(t, 3, v.Rows)
}

func TestFrame_RejectsInvalidView(t *testing.T) {
	_, err := encodeView(&channel.View{Rows: 2, Cols: 2, Data: make([]float32, 3)})
	assert.Error(t, err)
}
