// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterTwice(t *testing.T) {
	registry := prometheus.NewRegistry()
	if err := Register(registry); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(registry); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestRegisterExposesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	if err := Register(registry); err != nil {
		t.Fatalf("Register: %v", err)
	}
	PolicyVersion.WithLabelValues("node1").Set(12)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "aclsync_policy_version" {
			found = true
			if got := family.GetMetric()[0].GetGauge().GetValue(); got != 12 {
				t.Errorf("policy_version = %v, want 12", got)
			}
		}
	}
	if !found {
		t.Error("aclsync_policy_version not gathered")
	}
}

func TestInvocationsCounter(t *testing.T) {
	counter := Invocations.WithLabelValues("S", "M", "ok")
	before := testutil.ToFloat64(counter)
	counter.Inc()
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}
