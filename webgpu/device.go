// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build webgpu

package webgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

var (
	// ErrNoAdapter is returned by Open when no WebGPU adapter can be found.
	ErrNoAdapter = errors.New("webgpu: no adapter available")

	// ErrTooLarge is returned for volumes beyond the device's storage
	// buffer binding limit.
	ErrTooLarge = errors.New("webgpu: volume exceeds storage binding limit")
)

// readbackTimeout bounds the wait for a staging buffer to map.
const readbackTimeout = 5 * time.Second

// Device is an open WebGPU device. Its methods may be called from several
// goroutines; submissions are serialised.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	name     string
	logger   *slog.Logger

	// maxBinding is the largest storage buffer binding in bytes.
	maxBinding uint64

	mu sync.Mutex
}

// Option configures Open.
type Option func(*Device)

// WithLogger sets the logger for adapter selection and dispatch records.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// Open selects an adapter, preferring high performance, and creates a
// device on it.
func Open(opts ...Option) (*Device, error) {
	d := &Device{logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	if d.instance == nil {
		return nil, fmt.Errorf("webgpu: failed to create instance")
	}

	var err error
	for _, pref := range []*wgpu.RequestAdapterOptions{
		{PowerPreference: wgpu.PowerPreferenceHighPerformance},
		{PowerPreference: wgpu.PowerPreferenceLowPower},
		nil,
	} {
		d.adapter, err = d.instance.RequestAdapter(pref)
		if err == nil && d.adapter != nil {
			break
		}
		d.logger.Debug("adapter request failed", "err", err)
	}
	if d.adapter == nil {
		d.instance.Release()
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}

	info := d.adapter.GetInfo()
	d.name = info.Name
	d.logger.Info("using WebGPU adapter", "name", info.Name, "vendor", info.VendorName)

	d.device, err = d.adapter.RequestDevice(nil)
	if err != nil {
		d.adapter.Release()
		d.instance.Release()
		return nil, fmt.Errorf("webgpu: request device: %w", err)
	}
	d.queue = d.device.GetQueue()
	d.maxBinding = d.device.GetLimits().Limits.MaxStorageBufferBindingSize
	d.logger.Debug("device limits", "max_storage_binding", d.maxBinding)
	return d, nil
}

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// MaxVoxels returns the largest volume, in voxels, that fits one storage
// binding. With the default limits this is 32Mi voxels, a 256³ cube; 512³
// does not fit.
func (d *Device) MaxVoxels() int { return int(d.maxBinding / 4) }

func (d *Device) fits(op string, n int) error {
	if n > d.MaxVoxels() {
		return fmt.Errorf("webgpu: %s: %d voxels need %d bytes, limit %d: %w",
			op, n, n*4, d.maxBinding, ErrTooLarge)
	}
	return nil
}

// Close releases the device.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
	d.device = nil
}

func (d *Device) storage(label string, data []float32) (*wgpu.Buffer, error) {
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: wgpu.ToBytes(data),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create %s buffer: %w", label, err)
	}
	return buf, nil
}

func (d *Device) scratch(label string, n int) (*wgpu.Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(n * 4),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create %s buffer: %w", label, err)
	}
	return buf, nil
}

// dispatch compiles code and runs it once over the given workgroup counts
// with buffers bound in order to group 0.
func (d *Device) dispatch(label, code string, buffers []*wgpu.Buffer, x, y, z uint32) error {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return fmt.Errorf("webgpu: compile %s: %w", label, err)
	}
	defer module.Release()

	pipeline, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   label + "_pipe",
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("webgpu: pipeline %s: %w", label, err)
	}
	defer pipeline.Release()

	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, b := range buffers {
		entries[i] = wgpu.BindGroupEntry{Binding: uint32(i), Buffer: b, Size: b.GetSize()}
	}
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label + "_bind",
		Layout:  pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("webgpu: bind %s: %w", label, err)
	}
	defer bg.Release()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("webgpu: encoder %s: %w", label, err)
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(x, y, z)
	pass.End()

	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return fmt.Errorf("webgpu: finish %s: %w", label, err)
	}
	d.queue.Submit(cb)
	cb.Release()

	d.logger.Debug("dispatched", "kernel", label, "groups", [3]uint32{x, y, z})
	return nil
}

// read copies len(dst) floats from the start of buf to the host through a
// staging buffer.
func (d *Device) read(buf *wgpu.Buffer, dst []float32) error {
	size := uint64(len(dst) * 4)
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "read_staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("webgpu: create staging buffer: %w", err)
	}
	defer staging.Destroy()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	enc.CopyBufferToBuffer(buf, 0, staging, 0, size)
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return err
	}
	d.queue.Submit(cb)
	cb.Release()

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("webgpu: map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return fmt.Errorf("webgpu: map staging buffer: %w", err)
	}

	timeout := time.After(readbackTimeout)
wait:
	for {
		d.device.Poll(false, nil)
		select {
		case <-done:
			break wait
		case <-timeout:
			return fmt.Errorf("webgpu: readback timed out after %v", readbackTimeout)
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}
	if mapErr != nil {
		return mapErr
	}

	data := staging.GetMappedRange(0, uint(size))
	if data == nil {
		return fmt.Errorf("webgpu: empty mapped range")
	}
	copy(dst, wgpu.FromBytes[float32](data))
	staging.Unmap()
	return nil
}
