// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import "github.com/gviegas/fgraph/driver"

// GPUFamily selects which per-backend binding-path shape and
// index overrides apply when encoding a descriptor set.
type GPUFamily int

const (
	FamilyVulkan GPUFamily = iota
	FamilyMetalMacOS
	FamilyMetalAppleSilicon
)

// BindingResourceType names the kind of resource a binding
// entry names, independent of driver.DescType so that a
// logical descriptor set can be described before any backend
// object exists.
type BindingResourceType int

const (
	BindBuffer BindingResourceType = iota
	BindTexture
	BindSampler
	BindStorageImage
	BindConstant
)

// PlatformBindings carries the Metal per-GPU-family index
// overrides a logical resource entry may specify.
type PlatformBindings struct {
	MacOSMetalIndex        *int
	AppleSiliconMetalIndex *int
}

// DescriptorResource is one entry of a logical descriptor set.
type DescriptorResource struct {
	Binding          int
	ArrayLength      int
	Type             BindingResourceType
	ViewType         driver.ViewType
	PlatformBindings PlatformBindings
	Name             string
}

// DescriptorSetLayout is a logical descriptor set: a stage mask
// plus an ordered list of resource entries.
type DescriptorSetLayout struct {
	Stages    driver.Stage
	Resources []DescriptorResource
}

// compatibleWith implements the "≥2 shared resources"
// heuristic: two sets are compatible iff they
// share at least minShared resources with identical (binding,
// arrayLength, name, type).
func (l DescriptorSetLayout) compatibleWith(other DescriptorSetLayout, minShared int) bool {
	shared := 0
	for _, a := range l.Resources {
		for _, b := range other.Resources {
			if a.Binding == b.Binding && a.ArrayLength == b.ArrayLength &&
				a.Name == b.Name && a.Type == b.Type {
				shared++
				break
			}
		}
	}
	return shared >= minShared
}

// ResourceBindingPath is a backend-specific location a logical
// resource entry is encoded to.
type ResourceBindingPath struct {
	Family GPUFamily

	// Vulkan.
	Set        int
	Binding    int
	ArrayIndex int

	// Metal.
	DescriptorSet int
	Index         int
	MetalType     BindingResourceType
}

// BindingValue is the resource actually bound at a
// ResourceBindingPath: at most one of the driver handles is
// non-nil, selected by the entry's BindingResourceType.
type BindingValue struct {
	Buffer     driver.Buffer
	BufferOff  int64
	BufferSize int64
	View       driver.ImageView
	Sampler    driver.Sampler
}

// EncodeArgumentBuffer materializes a logical descriptor set's
// resource entries into (ResourceBindingPath, BindingValue)
// pairs for the given GPU family, matching each entry in layout
// to the corresponding value in values (by index).
//
// For FamilyMetalAppleSilicon, storage-image entries are left
// out of the returned pairs. No encoder in this package binds
// them directly either.
func EncodeArgumentBuffer(family GPUFamily, set int, layout DescriptorSetLayout, values []BindingValue) ([]ResourceBindingPath, []BindingValue) {
	if len(values) != len(layout.Resources) {
		fatalf("fgraph: argument buffer encode: %d values for %d resources", len(values), len(layout.Resources))
	}
	paths := make([]ResourceBindingPath, 0, len(layout.Resources))
	vals := make([]BindingValue, 0, len(layout.Resources))
	for i, r := range layout.Resources {
		if family == FamilyMetalAppleSilicon && r.Type == BindStorageImage {
			continue
		}
		var p ResourceBindingPath
		p.Family = family
		switch family {
		case FamilyVulkan:
			p.Set = set
			p.Binding = r.Binding
			p.ArrayIndex = 0
		case FamilyMetalMacOS:
			p.DescriptorSet = set
			p.Index = r.Binding
			if r.PlatformBindings.MacOSMetalIndex != nil {
				p.Index = *r.PlatformBindings.MacOSMetalIndex
			}
			p.MetalType = r.Type
		case FamilyMetalAppleSilicon:
			p.DescriptorSet = set
			p.Index = r.Binding
			if r.PlatformBindings.AppleSiliconMetalIndex != nil {
				p.Index = *r.PlatformBindings.AppleSiliconMetalIndex
			}
			p.MetalType = r.Type
		}
		paths = append(paths, p)
		vals = append(vals, values[i])
	}
	return paths, vals
}

// descTypeFor maps a logical BindingResourceType to the driver
// descriptor type the backend descriptor heap expects.
func descTypeFor(t BindingResourceType) driver.DescType {
	switch t {
	case BindBuffer, BindStorageImage:
		return driver.DBuffer
	case BindTexture:
		return driver.DTexture
	case BindSampler:
		return driver.DSampler
	case BindConstant:
		return driver.DConstant
	default:
		return driver.DBuffer
	}
}
