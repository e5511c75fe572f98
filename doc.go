// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gudavol provides volumetric min/max reduction and range
// normalization over dense 3D float32 fields on a CUDA-shaped runtime.
//
// The runtime executes kernels on the CPU. A launch is a grid of thread
// blocks; blocks are spread over worker goroutines and the threads of a
// block run in phases separated by barriers, with per-block shared memory.
// Device memory comes from a tracked pool, launches are asynchronous on a
// stream and results become visible after Synchronize.
//
// Volumes live on the device in one of two layouts:
//   - LayoutPitchedPointer: linear memory with rows padded to 512 bytes
//   - LayoutTexture: a block-linear Texture3D read through fetches
//
// Two reduction strategies compute the global range, StrategyTree and
// StrategyRowSweep, and Normalize rescales a volume into [lo, hi] with a
// configurable BlockShape. Every path produces the same bits as the
// sequential implementations in package cpuref.
//
// Example usage:
//
//	ctx := gudavol.NewContext()
//	defer ctx.Destroy()
//
//	vol, _ := volume.New(volume.Cube(64))
//	volume.FillUniform(vol, 42, 0, 1000)
//
//	dv, _ := ctx.Upload(vol, gudavol.LayoutPitchedPointer)
//	defer dv.Free()
//
//	r, _ := gudavol.FindMinMax(dv, gudavol.StrategyTree)
//	out, _ := gudavol.Normalize(dv, 0, 1, nil, gudavol.BlockShape{})
//	defer out.Free()
package gudavol
