// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Priority hints how a JobManager should schedule a job.
// Implementations are free to ignore it (NewErrgroupJobManager
// does), but the type is part of the job-manager contract:
// async(priority, body).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// JobManager is the external worker-pool contract for
// scheduling pass bodies independently across encoders:
// async(priority, body); syncOnMainThread(body).
type JobManager interface {
	// Async schedules body to run on the pool, tagged with
	// priority. It returns immediately.
	Async(priority Priority, body func() error)

	// SyncOnMainThread blocks until every job submitted to Async
	// so far has completed, then runs body on the calling
	// goroutine and returns its error (or the first error from
	// any of the awaited jobs, whichever the implementation
	// decides takes precedence — NewErrgroupJobManager prefers
	// the awaited jobs' error).
	SyncOnMainThread(body func() error) error
}

// errgroupJobManager implements JobManager on top of
// golang.org/x/sync/errgroup's fan-out/rendezvous pattern.
type errgroupJobManager struct {
	g *errgroup.Group
}

// NewErrgroupJobManager creates a JobManager backed by a fresh
// errgroup.Group. SyncOnMainThread waits on the current group
// and then replaces it with a fresh one, so one instance serves
// successive recording phases (AddPass...Compile).
func NewErrgroupJobManager() JobManager {
	return &errgroupJobManager{g: &errgroup.Group{}}
}

func (m *errgroupJobManager) Async(_ Priority, body func() error) {
	m.g.Go(body)
}

func (m *errgroupJobManager) SyncOnMainThread(body func() error) error {
	err := m.g.Wait()
	m.g = &errgroup.Group{}
	if err != nil {
		return err
	}
	if body != nil {
		return body()
	}
	return nil
}

// contextJobManager adapts an errgroup.Group carrying a
// context.Context, for callers that want Async jobs to observe
// cancellation (e.g. a frame graph torn down mid-recording).
// A natural extension of the JobManager contract using the
// same wired dependency.
type contextJobManager struct {
	g   *errgroup.Group
	ctx context.Context
}

// NewContextJobManager creates a JobManager whose jobs observe
// ctx's cancellation via errgroup.WithContext.
func NewContextJobManager(ctx context.Context) JobManager {
	g, ctx := errgroup.WithContext(ctx)
	return &contextJobManager{g: g, ctx: ctx}
}

func (m *contextJobManager) Async(_ Priority, body func() error) {
	m.g.Go(func() error {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		default:
			return body()
		}
	})
}

func (m *contextJobManager) SyncOnMainThread(body func() error) error {
	err := m.g.Wait()
	if err != nil {
		return err
	}
	if body != nil {
		return body()
	}
	return nil
}
