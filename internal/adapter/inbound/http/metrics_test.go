package http

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Sentinel-Gate/mcp-guard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.RequestsTotal == nil || m.RequestDuration == nil || m.GateDecisions == nil ||
		m.GateRejections == nil || m.SecurityEvents == nil {
		t.Fatalf("metrics not initialized: %+v", m)
	}

	m.GateRejections.WithLabelValues("origin_not_trusted").Inc()
	if got := testutil.ToFloat64(m.GateRejections.WithLabelValues("origin_not_trusted")); got != 1 {
		t.Errorf("gate_rejections_total = %v, want 1", got)
	}
}

func TestRegisterRateLimitKeys(t *testing.T) {
	reg := prometheus.NewRegistry()
	size := 3
	RegisterRateLimitKeys(reg, func() int { return size })

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var got float64 = -1
	for _, mf := range families {
		if mf.GetName() == "mcp_guard_rate_limit_keys" {
			got = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	if got != 3 {
		t.Errorf("mcp_guard_rate_limit_keys = %v, want 3", got)
	}
}

func TestInstrumentEventLog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	store := memory.NewAuditStore()
	log := InstrumentEventLog(store, m)

	log.Append(audit.SecurityEvent{Kind: audit.EventAuthFailure, Severity: audit.SeverityHigh})
	log.Append(audit.SecurityEvent{Kind: audit.EventAuthFailure, Severity: audit.SeverityHigh})
	log.Append(audit.SecurityEvent{Kind: audit.EventOriginRejected, Severity: audit.SeverityMedium})

	if got := testutil.ToFloat64(m.SecurityEvents.WithLabelValues(audit.EventAuthFailure, "high")); got != 2 {
		t.Errorf("auth_failure/high = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SecurityEvents.WithLabelValues(audit.EventOriginRejected, "medium")); got != 1 {
		t.Errorf("origin_rejected/medium = %v, want 1", got)
	}
	if store.Len() != 3 || len(log.Snapshot()) != 3 {
		t.Errorf("store holds %d events, want 3", store.Len())
	}
}
