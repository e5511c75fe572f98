// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

// Cache conditions recorded with each result.
const (
	CacheHot  = "hot"
	CacheCold = "cold"
)

// flushSize is twice the largest common L3.
const flushSize = 64 << 20

var flushBuf []byte

// flushCaches evicts the volume from the CPU caches by writing one byte per
// cache line of a buffer larger than the last level cache, twice with
// different patterns.
func flushCaches() {
	if flushBuf == nil {
		flushBuf = make([]byte, flushSize)
	}
	for i := 0; i < len(flushBuf); i += 64 {
		flushBuf[i] = byte(i)
	}
	for i := 0; i < len(flushBuf); i += 64 {
		flushBuf[i] = byte(i * 7)
	}
}
