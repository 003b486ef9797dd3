package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"taxiprep/internal/metrics"
)

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend(Config{}) error = nil, want non-nil")
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	got := labelsToTags(metrics.Labels{"stage": "outlier", "job": "taxiprep", "reason": "fare_cap"})
	want := []string{"job:taxiprep", "reason:fare_cap", "stage:outlier"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("labelsToTags = %v, want %v", got, want)
	}
	if labelsToTags(nil) != nil {
		t.Fatal("labelsToTags(nil) should be nil")
	}
}

func TestZeroBackendIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// TestFlushSendsOverUDP runs a fake agent and checks the emitted DogStatsD
// lines.
func TestFlushSendsOverUDP(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String()})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"stage": "outlier", "reason": "fare_cap"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "outlier", "status": "success"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got strings.Builder
	buf := make([]byte, 64*1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !strings.Contains(got.String(), metrics.RecordsTotal) || !strings.Contains(got.String(), metrics.StepDurationSeconds) {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read: %v (received %q)", err, got.String())
		}
		got.Write(buf[:n])
	}

	out := got.String()
	if !strings.Contains(out, metrics.RecordsTotal+":3|c|#reason:fare_cap,stage:outlier") {
		t.Fatalf("missing count line in %q", out)
	}
	if !strings.Contains(out, metrics.StepDurationSeconds+":0.25|h|#status:success,step:outlier") {
		t.Fatalf("missing histogram line in %q", out)
	}
}
