// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warden-auth/warden/internal/observability"
)

// mockObservabilityServer implements ObservabilityServer for testing.
type mockObservabilityServer struct {
	startFunc func() (<-chan error, error)
	stopped   bool
	metrics   *observability.Metrics
	ready     observability.ReadinessChecker
}

func (m *mockObservabilityServer) Start() (<-chan error, error) {
	if m.startFunc != nil {
		return m.startFunc()
	}
	return make(chan error, 1), nil
}

func (m *mockObservabilityServer) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func (m *mockObservabilityServer) Addr() string { return "127.0.0.1:9100" }

func (m *mockObservabilityServer) Metrics() *observability.Metrics {
	if m.metrics == nil {
		m.metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	return m.metrics
}

// mockAPIServer implements APIServer for testing.
type mockAPIServer struct {
	startErr error
	handler  http.Handler
	started  bool
	stopped  bool
}

func (m *mockAPIServer) Start() (<-chan error, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = true
	return make(chan error, 1), nil
}

func (m *mockAPIServer) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func (m *mockAPIServer) Addr() string { return "127.0.0.1:5000" }

// mockMigrator implements Migrator for testing.
type mockMigrator struct {
	upCalled    bool
	upErr       error
	downCalled  bool
	steps       []int
	forced      []int
	version     uint
	dirty       bool
	applied     []uint
	pending     []uint
	closeCalled bool
	closeErr    error
}

func (m *mockMigrator) Up() error {
	m.upCalled = true
	return m.upErr
}

func (m *mockMigrator) Down() error {
	m.downCalled = true
	return nil
}

func (m *mockMigrator) Steps(n int) error {
	m.steps = append(m.steps, n)
	return nil
}

func (m *mockMigrator) Version() (uint, bool, error) { return m.version, m.dirty, nil }

func (m *mockMigrator) Force(v int) error {
	m.forced = append(m.forced, v)
	return nil
}

func (m *mockMigrator) PendingMigrations() ([]uint, error) { return m.pending, nil }

func (m *mockMigrator) AppliedMigrations() ([]uint, error) { return m.applied, nil }

func (m *mockMigrator) Close() error {
	m.closeCalled = true
	return m.closeErr
}
