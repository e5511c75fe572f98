// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"fmt"
	"math"

	"github.com/LynnColeArt/gudavol"
	"github.com/LynnColeArt/gudavol/volume"
)

const (
	// workgroupSize is the reduction workgroup width. The shared-memory
	// tree halves it every round, so it must be a power of two.
	workgroupSize = 256

	// maxGroups caps the first reduction pass; the second pass folds the
	// partials with a single workgroup.
	maxGroups = 256

	// maxInvocations is the WebGPU default limit on threads per
	// workgroup, tighter than the CPU runtime's.
	maxInvocations = 256
)

// groupsFor returns the number of first-pass workgroups for n voxels.
func groupsFor(n int) int {
	return max(1, min(maxGroups, (n+workgroupSize-1)/workgroupSize))
}

// reduceShader folds n values into one (min, max) pair per workgroup using
// a grid-stride loop and a workgroup tree. With pairs set the input is
// itself a list of n (min, max) partials, as written by the first pass.
func reduceShader(n, groups int, pairs bool) string {
	loIdx, hiIdx := "i", "i"
	if pairs {
		loIdx, hiIdx = "2u * i", "2u * i + 1u"
	}
	return fmt.Sprintf(`
		@group(0) @binding(0) var<storage, read> input : array<f32>;
		@group(0) @binding(1) var<storage, read_write> partials : array<f32>;

		const N: u32 = %[1]du;
		const STRIDE: u32 = %[2]du;
		const WG: u32 = %[3]du;

		var<workgroup> smin: array<f32, %[3]d>;
		var<workgroup> smax: array<f32, %[3]d>;

		@compute @workgroup_size(%[3]d)
		fn main(
			@builtin(workgroup_id) wg_id: vec3<u32>,
			@builtin(local_invocation_id) local_id: vec3<u32>
		) {
			let tid = local_id.x;

			// Every element is a valid identity for its own fold.
			var i: u32 = 0u;
			var lo = input[%[4]s];
			var hi = input[%[5]s];
			for (i = wg_id.x * WG + tid; i < N; i += STRIDE) {
				lo = min(lo, input[%[4]s]);
				hi = max(hi, input[%[5]s]);
			}
			smin[tid] = lo;
			smax[tid] = hi;
			workgroupBarrier();

			for (var s: u32 = WG / 2u; s > 0u; s = s >> 1u) {
				if (tid < s) {
					smin[tid] = min(smin[tid], smin[tid + s]);
					smax[tid] = max(smax[tid], smax[tid + s]);
				}
				workgroupBarrier();
			}

			if (tid == 0u) {
				partials[2u * wg_id.x] = smin[0];
				partials[2u * wg_id.x + 1u] = smax[0];
			}
		}
	`, n, groups*workgroupSize, workgroupSize, loIdx, hiIdx)
}

// normalizeShader rescales one voxel per invocation over a 3D dispatch of
// block.X × block.Y × 1 workgroups. Constants are embedded by bit pattern
// so no decimal rounding creeps in. Finite inputs and bounds never overflow.
func normalizeShader(dims volume.Dims, src volume.ScalarRange, lo, hi float32, block gudavol.BlockShape) string {
	// A source span beyond MaxFloat32 is computed on halved operands.
	scale := "1.0"
	if float64(src.Max)-float64(src.Min) > math.MaxFloat32 {
		scale = "0.5"
	}
	return fmt.Sprintf(`
		@group(0) @binding(0) var<storage, read> input : array<f32>;
		@group(0) @binding(1) var<storage, read_write> output : array<f32>;

		const W: u32 = %du;
		const H: u32 = %du;
		const D: u32 = %du;
		const SRC_MIN: f32 = bitcast<f32>(%du);
		const SRC_MAX: f32 = bitcast<f32>(%du);
		const LO: f32 = bitcast<f32>(%du);
		const HI: f32 = bitcast<f32>(%du);
		const SCALE: f32 = %s;

		@compute @workgroup_size(%d, %d, 1)
		fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
			if (gid.x >= W || gid.y >= H || gid.z >= D) {
				return;
			}
			let i = (gid.z * H + gid.y) * W + gid.x;
			let v = input[i];
			if (SRC_MAX == SRC_MIN || v == SRC_MIN) {
				output[i] = LO;
				return;
			}
			if (v == SRC_MAX) {
				output[i] = HI;
				return;
			}
			let t = (v * SCALE - SRC_MIN * SCALE) / (SRC_MAX * SCALE - SRC_MIN * SCALE);
			let r = LO * (1.0 - t) + HI * t;
			output[i] = clamp(r, min(LO, HI), max(LO, HI));
		}
	`, dims.Width, dims.Height, dims.Depth,
		math.Float32bits(src.Min), math.Float32bits(src.Max),
		math.Float32bits(lo), math.Float32bits(hi), scale,
		block.X, block.Y)
}

// dispatchFor returns the workgroup counts covering dims with block.
func dispatchFor(dims volume.Dims, block gudavol.BlockShape) (x, y, z uint32) {
	return uint32((dims.Width + block.X - 1) / block.X),
		uint32((dims.Height + block.Y - 1) / block.Y),
		uint32(dims.Depth)
}

// resolveBlock applies the default shape and the WebGPU invocation limit.
func resolveBlock(b gudavol.BlockShape) (gudavol.BlockShape, error) {
	if b == (gudavol.BlockShape{}) {
		b = gudavol.DefaultBlockShape()
	}
	if b.X < 1 || b.Y < 1 || b.Threads() > maxInvocations {
		return b, fmt.Errorf("webgpu: block %v must have both sides >= 1 and at most %d invocations: %w",
			b, maxInvocations, gudavol.ErrInvalidBlockShape)
	}
	return b, nil
}
