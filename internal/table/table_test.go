package table

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noiseablate/internal/matrix"
	"github.com/roach88/noiseablate/internal/variant"
)

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func fixture(t *testing.T) (*matrix.Matrix, *variant.Registry) {
	t.Helper()
	all, err := variant.Default(variant.DefaultParams())
	require.NoError(t, err)
	reg, err := all.Select("baseline", "bliss_sk", "bliss_corrected_sk_sigmaclip")
	require.NoError(t, err)

	m, err := matrix.New(reg.Names(), []string{"voyager", "synthetic"})
	require.NoError(t, err)
	require.NoError(t, m.Set("baseline", "voyager", matrix.Measurement{Power: 1.0, Floor: 2.5}))
	require.NoError(t, m.Set("baseline", "synthetic", matrix.Measurement{Power: 0.5, Floor: 1.25}))
	require.NoError(t, m.Fail("bliss_sk", "voyager", errors.New("estimator failed")))
	require.NoError(t, m.Set("bliss_sk", "synthetic", matrix.Measurement{Power: math.Inf(1), Floor: 0.1234}))
	require.NoError(t, m.Set("bliss_corrected_sk_sigmaclip", "voyager", matrix.Measurement{Power: 0.98765, Floor: 1.0004}))
	require.NoError(t, m.Set("bliss_corrected_sk_sigmaclip", "synthetic", matrix.Measurement{Power: -0.5, Floor: 3}))
	return m, reg
}

func TestRender_LaTeX(t *testing.T) {
	m, reg := fixture(t)
	for _, q := range []matrix.Quantity{matrix.Power, matrix.Floor} {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, m, reg, q, StyleLaTeX))
		golden(t).Assert(t, "latex_"+string(q), buf.Bytes())
	}
}

func TestRender_Markdown(t *testing.T) {
	m, reg := fixture(t)
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, m, reg, matrix.Power, StyleMarkdown))
	golden(t).Assert(t, "markdown_power", buf.Bytes())
}

func TestLegend(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Legend(&buf, []string{"voyager", "synthetic"}))
	golden(t).Assert(t, "legend", buf.Bytes())
}

func TestRender_UnknownVariant(t *testing.T) {
	reg, err := variant.Default(variant.DefaultParams())
	require.NoError(t, err)
	m, err := matrix.New([]string{"mystery"}, []string{"x"})
	require.NoError(t, err)

	err = Render(&bytes.Buffer{}, m, reg, matrix.Power, StyleLaTeX)
	assert.ErrorIs(t, err, variant.ErrUnknownVariant)
}

func TestCodes(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, Codes(3))
	assert.Equal(t, "Z", Code(25))
	assert.Equal(t, "AA", Code(26))
	assert.Equal(t, "AB", Code(27))
	assert.Equal(t, "AZ", Code(51))
	assert.Equal(t, "BA", Code(52))
	assert.Equal(t, "ZZ", Code(701))
	assert.Equal(t, "AAA", Code(702))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "1.235", FormatValue(1.23456))
	assert.Equal(t, "NaN", FormatValue(math.NaN()))
	assert.Equal(t, "inf", FormatValue(math.Inf(1)))
	assert.Equal(t, "-inf", FormatValue(math.Inf(-1)))
	assert.Equal(t, Blank, FormatCell(matrix.Cell{}, matrix.Power))
}

func TestFailures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Failures(&buf, []matrix.Failure{
		{Variant: "bliss_sk", File: "X", Err: errors.New("boom")},
	}))
	assert.Equal(t, "FAILED bliss_sk / X: boom\n", buf.String())
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("")
	require.NoError(t, err)
	assert.Equal(t, StyleLaTeX, s)
	s, err = ParseStyle("MD")
	require.NoError(t, err)
	assert.Equal(t, StyleMarkdown, s)
	_, err = ParseStyle("html")
	assert.Error(t, err)
}
