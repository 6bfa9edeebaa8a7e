package matrix

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, variants, files []string, values map[string][]Measurement) *Matrix {
	t.Helper()
	m, err := New(variants, files)
	require.NoError(t, err)
	for v, row := range values {
		for i, ms := range row {
			require.NoError(t, m.Set(v, files[i], ms))
		}
	}
	return m
}

func measurements(m *Matrix, variant string) []Measurement {
	row, _ := m.Row(variant)
	out := make([]Measurement, len(row))
	for i, c := range row {
		out[i] = c.Measurement
	}
	return out
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestNew_RejectsDuplicatesAndEmpty(t *testing.T) {
	_, err := New([]string{"a", "a"}, []string{"x"})
	assert.Error(t, err)
	_, err = New([]string{"a"}, []string{"x", ""})
	assert.Error(t, err)
}

func TestSetGetFail(t *testing.T) {
	m, err := New([]string{"a", "b"}, []string{"x", "y"})
	require.NoError(t, err)

	require.NoError(t, m.Set("a", "x", Measurement{Power: 1, Floor: 2}))
	require.NoError(t, m.Fail("b", "y", errors.New("boom")))
	assert.Error(t, m.Set("c", "x", Measurement{}))
	assert.Error(t, m.Fail("a", "z", nil))

	c, ok := m.Get("a", "x")
	require.True(t, ok)
	assert.Equal(t, Measured, c.State)
	assert.Equal(t, Measurement{Power: 1, Floor: 2}, c.Measurement)

	c, ok = m.Get("a", "y")
	require.True(t, ok)
	assert.Equal(t, Empty, c.State)

	_, ok = m.Get("nope", "x")
	assert.False(t, ok)

	assert.False(t, m.Complete())
	failures := m.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Variant)
	assert.Equal(t, "y", failures[0].File)
	assert.EqualError(t, failures[0].Err, "boom")
}

func TestNormalize_Self(t *testing.T) {
	files := []string{"x", "y", "z"}
	m := build(t, []string{"only"}, files, map[string][]Measurement{
		"only": {{Power: 0.3, Floor: 7}, {Power: 1e-9, Floor: 1e9}, {Power: 42, Floor: 0.1}},
	})
	n, err := m.Normalize("only")
	require.NoError(t, err)
	want := []Measurement{{1, 1}, {1, 1}, {1, 1}}
	if diff := cmp.Diff(want, measurements(n, "only"), approx); diff != "" {
		t.Errorf("self-normalized row mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Scenario(t *testing.T) {
	m := build(t, []string{"baseline", "corrected_slice"}, []string{"f"}, map[string][]Measurement{
		"baseline":        {{Power: 4.0, Floor: 9}},
		"corrected_slice": {{Power: 2.0, Floor: 3}},
	})
	n, err := m.Normalize("corrected_slice")
	require.NoError(t, err)

	c, _ := n.Get("baseline", "f")
	assert.InDelta(t, 2.0, c.Measurement.Power, 1e-12)
	assert.InDelta(t, 3.0, c.Measurement.Floor, 1e-12)

	c, _ = n.Get("corrected_slice", "f")
	assert.InDelta(t, 1.0, c.Measurement.Power, 1e-12)

	raw, _ := m.Get("baseline", "f")
	assert.Equal(t, 4.0, raw.Measurement.Power, "input matrix is untouched")
}

func TestNormalize_ScaleInvariant(t *testing.T) {
	variants := []string{"base", "a", "b"}
	files := []string{"x", "y"}
	values := map[string][]Measurement{
		"base": {{Power: 2, Floor: 5}, {Power: 3, Floor: 4}},
		"a":    {{Power: 1, Floor: 1}, {Power: 6, Floor: 8}},
		"b":    {{Power: 5, Floor: 2}, {Power: 9, Floor: 2}},
	}
	before, err := build(t, variants, files, values).Normalize("base")
	require.NoError(t, err)

	const k = 3.5
	scaled := map[string][]Measurement{"base": values["base"]}
	for _, v := range []string{"a", "b"} {
		row := append([]Measurement(nil), values[v]...)
		row[1].Power *= k
		scaled[v] = row
	}
	after, err := build(t, variants, files, scaled).Normalize("base")
	require.NoError(t, err)

	for _, v := range []string{"a", "b"} {
		b, _ := before.Get(v, "y")
		a, _ := after.Get(v, "y")
		assert.InDelta(t, k*b.Measurement.Power, a.Measurement.Power, 1e-12, v)
		assert.InDelta(t, b.Measurement.Floor, a.Measurement.Floor, 1e-12, v)

		bx, _ := before.Get(v, "x")
		ax, _ := after.Get(v, "x")
		assert.Equal(t, bx, ax, "other files unaffected")
	}
}

func TestNormalize_ZeroBaselineIsInfinity(t *testing.T) {
	m := build(t, []string{"base", "a", "b", "c"}, []string{"x"}, map[string][]Measurement{
		"base": {{Power: 0, Floor: 0}},
		"a":    {{Power: 2, Floor: -1}},
		"b":    {{Power: 0, Floor: 0}},
		"c":    {{Power: math.NaN(), Floor: 1}},
	})
	n, err := m.Normalize("base")
	require.NoError(t, err)

	a, _ := n.Get("a", "x")
	assert.True(t, math.IsInf(a.Measurement.Power, 1))
	assert.True(t, math.IsInf(a.Measurement.Floor, -1))

	b, _ := n.Get("b", "x")
	assert.True(t, math.IsInf(b.Measurement.Power, 1))

	c, _ := n.Get("c", "x")
	assert.True(t, math.IsNaN(c.Measurement.Power))
	assert.True(t, math.IsInf(c.Measurement.Floor, 1))
}

func TestNormalize_FailedCellsStayFailed(t *testing.T) {
	m := build(t, []string{"base", "bliss_sk"}, []string{"X", "Y"}, map[string][]Measurement{
		"base": {{Power: 2, Floor: 2}, {Power: 4, Floor: 4}},
	})
	require.NoError(t, m.Set("bliss_sk", "Y", Measurement{Power: 8, Floor: 2}))
	require.NoError(t, m.Fail("bliss_sk", "X", errors.New("estimator")))

	n, err := m.Normalize("base")
	require.NoError(t, err)
	c, _ := n.Get("bliss_sk", "X")
	assert.Equal(t, Failed, c.State)
	c, _ = n.Get("bliss_sk", "Y")
	assert.Equal(t, Measurement{Power: 2, Floor: 0.5}, c.Measurement)
}

func TestNormalize_BaselineMissing(t *testing.T) {
	m := build(t, []string{"base", "a"}, []string{"x", "y"}, map[string][]Measurement{
		"a": {{Power: 1, Floor: 1}, {Power: 1, Floor: 1}},
	})
	require.NoError(t, m.Set("base", "x", Measurement{Power: 1, Floor: 1}))
	cause := errors.New("open failed")
	require.NoError(t, m.Fail("base", "y", cause))

	_, err := m.Normalize("base")
	require.ErrorIs(t, err, ErrBaselineMissing)
	assert.ErrorIs(t, err, cause)

	var missing *BaselineMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "y", missing.File)
}

func TestNormalize_FileFailedEverywhereIsBaselineMissing(t *testing.T) {
	m := build(t, []string{"base", "a"}, []string{"x", "y"}, nil)
	require.NoError(t, m.Set("base", "x", Measurement{Power: 2, Floor: 2}))
	require.NoError(t, m.Set("a", "x", Measurement{Power: 4, Floor: 4}))
	cause := errors.New("missing file")
	require.NoError(t, m.Fail("base", "y", cause))
	require.NoError(t, m.Fail("a", "y", cause))

	_, err := m.Normalize("base")
	var missing *BaselineMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "y", missing.File)
	assert.ErrorIs(t, err, cause)

	// Without normalization the failed column is still there to render.
	c, _ := m.Get("a", "y")
	assert.Equal(t, Failed, c.State)
}

func TestNormalize_BaselineNotInMatrix(t *testing.T) {
	m := build(t, []string{"a"}, []string{"x"}, map[string][]Measurement{
		"a": {{Power: 1, Floor: 1}},
	})
	_, err := m.Normalize("corrected_slice")
	assert.ErrorIs(t, err, ErrBaselineNotInMatrix)
}

func TestNormalize_RejectsColumnMismatch(t *testing.T) {
	m := build(t, []string{"base", "a"}, []string{"x", "y"}, map[string][]Measurement{
		"base": {{Power: 1, Floor: 1}, {Power: 1, Floor: 1}},
	})
	require.NoError(t, m.Set("a", "x", Measurement{Power: 1, Floor: 1}))

	_, err := m.Normalize("base")
	require.ErrorIs(t, err, ErrColumnMismatch)

	var mismatch *ColumnMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "a", mismatch.Variant)
	assert.Equal(t, "y", mismatch.File)
}

func TestNormalize_EmptyColumnEverywhereIsAllowed(t *testing.T) {
	m := build(t, []string{"base", "a"}, []string{"x", "y"}, nil)
	require.NoError(t, m.Set("base", "x", Measurement{Power: 2, Floor: 2}))
	require.NoError(t, m.Set("a", "x", Measurement{Power: 4, Floor: 4}))

	n, err := m.Normalize("base")
	require.NoError(t, err)
	c, _ := n.Get("a", "y")
	assert.Equal(t, Empty, c.State)
}

func TestQuantity(t *testing.T) {
	ms := Measurement{Power: 1, Floor: 2}
	assert.Equal(t, 1.0, Power.Of(ms))
	assert.Equal(t, 2.0, Floor.Of(ms))
}
