package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/shopauth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot shopauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() shopauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestCollectCountersAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: shopauth.MetricsSnapshot{
			Counters: map[shopauth.MetricID]uint64{
				shopauth.MetricSignInSuccess: 7,
			},
			Histograms: map[shopauth.MetricID][]uint64{
				shopauth.MetricSignInLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	registry := prometheus.NewRegistry()
	if err := registry.Register(exp); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()

	for _, want := range []string{
		"shopauth_signin_success_total 7",
		`shopauth_signin_latency_seconds_bucket{le="0.005"} 1`,
		`shopauth_signin_latency_seconds_bucket{le="+Inf"} 36`,
		"shopauth_signin_latency_seconds_count 36",
		"shopauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHistogramSkippedWhenLatencyDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: shopauth.MetricsSnapshot{
			Counters:   map[shopauth.MetricID]uint64{shopauth.MetricSignupSuccess: 1},
			Histograms: map[shopauth.MetricID][]uint64{},
		},
	})

	if got := testutil.CollectAndCount(exp, "shopauth_signin_latency_seconds"); got != 0 {
		t.Fatalf("expected no histogram, got %d series", got)
	}
	if got := testutil.CollectAndCount(exp, "shopauth_signup_success_total"); got != 1 {
		t.Fatalf("expected one signup counter, got %d", got)
	}
}

func TestNewRegistryGathers(t *testing.T) {
	registry := NewRegistry(NewExporterFromSource(fakeSource{
		snapshot: shopauth.MetricsSnapshot{Counters: map[shopauth.MetricID]uint64{}},
	}))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metric families")
	}
}
