package cpuref

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/gudavol/volume"
)

func newVolume(t *testing.T, d volume.Dims) *volume.Volume {
	t.Helper()
	v, err := volume.New(d)
	require.NoError(t, err)
	return v
}

func TestFindMinMax(t *testing.T) {
	t.Run("single voxel", func(t *testing.T) {
		v := newVolume(t, volume.Cube(1))
		v.Set(0, 0, 0, 5)
		r, err := FindMinMax(v)
		require.NoError(t, err)
		assert.Equal(t, volume.ScalarRange{Min: 5, Max: 5}, r)
	})

	t.Run("ramp", func(t *testing.T) {
		v := newVolume(t, volume.Cube(8))
		volume.FillRamp(v)
		r, err := FindMinMax(v)
		require.NoError(t, err)
		assert.Equal(t, volume.ScalarRange{Min: 0, Max: 511}, r)
	})

	t.Run("negative extremes anywhere", func(t *testing.T) {
		v := newVolume(t, volume.Dims{Width: 5, Height: 3, Depth: 2})
		volume.FillConstant(v, 1)
		v.Set(4, 2, 1, -7)
		v.Set(2, 0, 0, 9)
		r, err := FindMinMax(v)
		require.NoError(t, err)
		assert.Equal(t, volume.ScalarRange{Min: -7, Max: 9}, r)
	})

	t.Run("nil volume", func(t *testing.T) {
		_, err := FindMinMax(nil)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})
}

func TestNormalize(t *testing.T) {
	t.Run("ramp spans lo..hi", func(t *testing.T) {
		v := newVolume(t, volume.Cube(8))
		volume.FillRamp(v)

		out, err := Normalize(v, -1, 1, nil)
		require.NoError(t, err)
		require.NotSame(t, v, out)

		r, err := FindMinMax(out)
		require.NoError(t, err)
		assert.Equal(t, float32(-1), r.Min)
		assert.InDelta(t, 1, r.Max, 1e-6)

		want := make([]float32, 512)
		for i := range want {
			want[i] = -1 + 2*float32(i)/511
		}
		if diff := cmp.Diff(want, out.Data(), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("ramp mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("constant volume", func(t *testing.T) {
		v := newVolume(t, volume.Cube(4))
		volume.FillConstant(v, 3.14)
		out, err := Normalize(v, 2, 9, nil)
		require.NoError(t, err)
		for _, x := range out.Data() {
			require.Equal(t, float32(2), x)
		}
	})

	t.Run("in place matches out of place", func(t *testing.T) {
		v := newVolume(t, volume.Cube(16))
		volume.FillUniform(v, 99, -50, 50)

		fresh, err := Normalize(v, 0, 1, nil)
		require.NoError(t, err)

		inPlace, err := Normalize(v, 0, 1, v)
		require.NoError(t, err)
		require.Same(t, v, inPlace)
		assert.Equal(t, fresh.Data(), v.Data())
	})

	t.Run("extreme finite values", func(t *testing.T) {
		v, err := volume.FromSlice(volume.Dims{Width: 3, Height: 1, Depth: 1},
			[]float32{-math.MaxFloat32, 0, math.MaxFloat32})
		require.NoError(t, err)
		out, err := Normalize(v, 0, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0.5, 1}, out.Data())
	})

	t.Run("dims mismatch", func(t *testing.T) {
		v := newVolume(t, volume.Cube(4))
		out := newVolume(t, volume.Cube(5))
		volume.FillConstant(out, 7)

		_, err := Normalize(v, 0, 1, out)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
		assert.Equal(t, float32(7), out.At(0, 0, 0), "out must be untouched")
	})

	t.Run("idempotent on unit range", func(t *testing.T) {
		v := newVolume(t, volume.Cube(8))
		volume.FillUniform(v, 7, 10, 20)
		once, err := Normalize(v, 0, 1, nil)
		require.NoError(t, err)
		twice, err := Normalize(once, 0, 1, nil)
		require.NoError(t, err)
		if diff := cmp.Diff(once.Data(), twice.Data(), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("second normalize changed data (-once +twice):\n%s", diff)
		}
	})
}
