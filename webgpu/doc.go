// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webgpu runs the volume min/max reduction and normalization as
// WGSL compute shaders on a WebGPU adapter.
//
// The device code links the native wgpu library and is only built with
// the webgpu build tag:
//
//	go test -tags webgpu ./webgpu
//
// Results match the cpuref package exactly for min/max. Normalized voxels
// agree within a few ULP, since WGSL does not require correctly rounded
// division.
package webgpu
