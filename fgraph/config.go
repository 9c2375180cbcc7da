// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

// Config carries the tunables the frame graph core exposes,
// mirroring the shape of a Config / DefaultConfig / Configure
// triple.
type Config struct {
	// ChunkSize is the number of slots per registry chunk.
	// Must be a positive multiple of 32.
	ChunkSize int

	// InflightFrames is the number of frames the CPU is allowed
	// to record ahead of GPU completion — the value the
	// inflight-frame counting semaphore is initialized with.
	InflightFrames int

	// UploadBudget is the byte budget the resource uploader
	// flushes against.
	UploadBudget int64

	// SetCompatMinShared is the "≥2 shared resources" threshold
	// for descriptor-set compatibility, exposed as a tunable
	// rather than a hard-coded constant (see DESIGN.md).
	// DescriptorSetLayout.compatibleWith takes the threshold as an
	// argument; no code in this package passes this field to it.
	SetCompatMinShared int

	// JobManager schedules pass bodies. If nil, Configure installs
	// NewErrgroupJobManager().
	JobManager JobManager
}

// DefaultConfig returns the configuration new frame graphs use
// unless overridden.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          256,
		InflightFrames:     2,
		UploadBudget:       128 << 20, // 128 MiB
		SetCompatMinShared: 2,
	}
}

// Configure fills any zero-valued field of c with its
// DefaultConfig counterpart and installs a default JobManager
// if none was supplied.
func Configure(c Config) Config {
	def := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.InflightFrames <= 0 {
		c.InflightFrames = def.InflightFrames
	}
	if c.UploadBudget <= 0 {
		c.UploadBudget = def.UploadBudget
	}
	if c.SetCompatMinShared <= 0 {
		c.SetCompatMinShared = def.SetCompatMinShared
	}
	if c.JobManager == nil {
		c.JobManager = NewErrgroupJobManager()
	}
	return c
}
