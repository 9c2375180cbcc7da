// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package fgraph implements a frame graph: applications describe a
// frame as an unordered set of passes that declare their resource
// usages, and the graph determines a valid execution order,
// materializes transient resources with aliasing, inserts the
// minimum barriers/layout transitions/cross-queue synchronization
// required for correctness, and batches recorded commands into
// command buffers for submission through the driver package.
package fgraph
