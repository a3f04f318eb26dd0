// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus collectors for endpoint calls,
// convergence waits, and node policy versions. The collectors live in
// their own package so that lib/service, lib/converge, and lib/acl can
// record into them without importing each other.
//
// Collectors are created at package init and registered explicitly:
// binaries call Register once with their registry; tests read values
// through prometheus/testutil without registering.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Invocations counts endpoint calls by outcome. Outcome is "ok",
	// "empty" (the method produced no value), or a fault kind name.
	Invocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aclsync",
		Name:      "invocations_total",
		Help:      "Endpoint calls issued through the invoker, by outcome.",
	}, []string{"service", "method", "outcome"})

	// InvocationSeconds is the client-observed call latency.
	InvocationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aclsync",
		Name:      "invocation_seconds",
		Help:      "Round-trip latency of endpoint calls.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"service", "method"})

	// HandledCalls counts calls dispatched by endpoint servers.
	HandledCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aclsync",
		Name:      "handled_calls_total",
		Help:      "Calls dispatched by the endpoint server, by outcome.",
	}, []string{"service", "method", "outcome"})

	// ConvergenceWaitSeconds is the time from the start of a wait to
	// its resolution. Outcome is "converged", "timeout", or "cancelled".
	ConvergenceWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aclsync",
		Name:      "convergence_wait_seconds",
		Help:      "Time spent waiting for a change to reach every node.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"outcome"})

	// ConvergenceTicks counts poll rounds across all waits.
	ConvergenceTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aclsync",
		Name:      "convergence_ticks_total",
		Help:      "Poll rounds issued while waiting for convergence.",
	})

	// PolicyVersion is the local policy store version of a node.
	PolicyVersion = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aclsync",
		Name:      "policy_version",
		Help:      "Current version of the node-local permission cache.",
	}, []string{"node"})

	// PropagationFailures counts failed snapshot pushes to peers.
	PropagationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aclsync",
		Name:      "propagation_failures_total",
		Help:      "Failed policy snapshot pushes, by peer.",
	}, []string{"peer"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		Invocations,
		InvocationSeconds,
		HandledCalls,
		ConvergenceWaitSeconds,
		ConvergenceTicks,
		PolicyVersion,
		PropagationFailures,
	}
}

// Register registers every collector on reg, or on the default
// registerer when reg is nil. Collectors that are already registered
// are skipped, so calling Register twice is harmless.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, collector := range collectors() {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
