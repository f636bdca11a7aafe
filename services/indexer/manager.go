// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harborml/codeassist/pkg/config"
)

// State describes what the background indexing loop is doing.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is a snapshot of the manager for the status endpoint.
type Status struct {
	State       State
	LastIndexed time.Time
	LastError   string
}

// Manager runs the indexer on a fixed schedule. A successful run
// sleeps for the configured interval; a failed run retries sooner.
// Trigger requests an immediate run between ticks.
type Manager struct {
	indexer       *Indexer
	repos         *config.ReposFile
	interval      time.Duration
	retryInterval time.Duration

	trigger chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc

	mu          sync.Mutex
	state       State
	lastIndexed time.Time
	lastError   string
}

func NewManager(ix *Indexer, repos *config.ReposFile, interval, retryInterval time.Duration) *Manager {
	return &Manager{
		indexer:       ix,
		repos:         repos,
		interval:      interval,
		retryInterval: retryInterval,
		trigger:       make(chan struct{}, 1),
		done:          make(chan struct{}),
		state:         StateIdle,
	}
}

// Start launches the background indexing loop. The first run begins
// immediately.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx)
	slog.Info("Indexing manager started", "interval", m.interval.String(),
		"retry_interval", m.retryInterval.String())
}

// Stop cancels the loop and waits for the current run to unwind.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

// Trigger requests an immediate indexing run. Returns false when a run
// is already in progress.
func (m *Manager) Trigger() bool {
	m.mu.Lock()
	running := m.state == StateRunning
	m.mu.Unlock()
	if running {
		slog.Warn("Indexing is already in progress")
		return false
	}
	select {
	case m.trigger <- struct{}{}:
	default:
		// A trigger is already pending.
	}
	return true
}

// Status returns a snapshot of the loop's state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, LastIndexed: m.lastIndexed, LastError: m.lastError}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	for {
		wait := m.runOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("Indexing manager stopped")
			return
		case <-m.trigger:
			slog.Info("Indexing triggered manually")
		case <-time.After(wait):
		}
	}
}

// runOnce performs one indexing pass and returns how long to sleep
// before the next one.
func (m *Manager) runOnce(ctx context.Context) time.Duration {
	m.mu.Lock()
	m.state = StateRunning
	m.mu.Unlock()

	err := m.indexer.IndexAll(ctx, m.repos)

	m.mu.Lock()
	m.state = StateIdle
	if err != nil {
		m.lastError = err.Error()
	} else {
		m.lastError = ""
		m.lastIndexed = time.Now()
	}
	m.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Error during indexing", "error", err,
				"retry_in", m.retryInterval.String())
		}
		return m.retryInterval
	}
	return m.interval
}
