// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build webgpu

package main

import (
	"github.com/LynnColeArt/gudavol/bench"
	"github.com/LynnColeArt/gudavol/webgpu"
)

func init() {
	backendCases = func() ([]bench.Case, func(), error) {
		d, err := webgpu.Open(webgpu.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		logger.Info("webgpu cases enabled", "adapter", d.Name(), "max_voxels", d.MaxVoxels())
		return bench.WebGPUCases(d), d.Close, nil
	}
}
