// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/gudavol"
	"github.com/LynnColeArt/gudavol/volume"
)

func TestGroupsFor(t *testing.T) {
	for _, tt := range []struct{ n, want int }{
		{1, 1},
		{256, 1},
		{257, 2},
		{64 * 64 * 64, maxGroups},
	} {
		assert.Equal(t, tt.want, groupsFor(tt.n), "n=%d", tt.n)
	}
}

func TestReduceShader(t *testing.T) {
	voxels := reduceShader(1000, 4, false)
	assert.Contains(t, voxels, "const N: u32 = 1000u;")
	assert.Contains(t, voxels, "const STRIDE: u32 = 1024u;")
	assert.Contains(t, voxels, "@workgroup_size(256)")
	assert.Contains(t, voxels, "lo = min(lo, input[i]);")
	assert.Equal(t, 2, strings.Count(voxels, "workgroupBarrier()"))

	pairs := reduceShader(4, 1, true)
	assert.Contains(t, pairs, "var lo = input[2u * i];")
	assert.Contains(t, pairs, "hi = max(hi, input[2u * i + 1u]);")
}

func TestNormalizeShaderEmbedsBits(t *testing.T) {
	src := volume.ScalarRange{Min: -0.1, Max: 3.3}
	code := normalizeShader(volume.Dims{Width: 5, Height: 6, Depth: 7}, src, 0, 1, gudavol.BlockShape{X: 8, Y: 4})

	assert.Contains(t, code, "const W: u32 = 5u;")
	assert.Contains(t, code, "const D: u32 = 7u;")
	assert.Contains(t, code, "@workgroup_size(8, 4, 1)")
	bits := strconv.FormatUint(uint64(math.Float32bits(-0.1)), 10)
	assert.Contains(t, code, "const SRC_MIN: f32 = bitcast<f32>("+bits+"u);")
	assert.Contains(t, code, "clamp(r, min(LO, HI), max(LO, HI))")
	assert.Contains(t, code, "const SCALE: f32 = 1.0;")

	wide := volume.ScalarRange{Min: -math.MaxFloat32, Max: math.MaxFloat32}
	code = normalizeShader(volume.Dims{Width: 3, Height: 1, Depth: 1}, wide, 0, 1, gudavol.BlockShape{X: 4, Y: 1})
	assert.Contains(t, code, "const SCALE: f32 = 0.5;")
}

func TestDispatchFor(t *testing.T) {
	x, y, z := dispatchFor(volume.Dims{Width: 33, Height: 16, Depth: 3}, gudavol.BlockShape{X: 16, Y: 16})
	assert.Equal(t, [3]uint32{3, 1, 3}, [3]uint32{x, y, z})
}

func TestResolveBlock(t *testing.T) {
	b, err := resolveBlock(gudavol.BlockShape{})
	require.NoError(t, err)
	assert.Equal(t, gudavol.DefaultBlockShape(), b)

	_, err = resolveBlock(gudavol.BlockShape{X: 32, Y: 32})
	assert.True(t, errors.Is(err, gudavol.ErrInvalidBlockShape), "got %v", err)

	_, err = resolveBlock(gudavol.BlockShape{X: 0, Y: 4})
	assert.Error(t, err)
}
