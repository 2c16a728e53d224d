package observability

import (
	"testing"
	"time"

	"github.com/danmuck/tlvhello/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	beforeSent := SessionCount(OutcomeSent)
	beforeAccepted := AcceptedCount()

	RecordAccepted(1)
	RecordSession(OutcomeSent, 0, 3*time.Millisecond)
	RecordRefused()
	RecordAcceptError()
	RecordHTTPRequest("GET", "/health", 200, time.Millisecond)

	if got := SessionCount(OutcomeSent) - beforeSent; got != 1 {
		t.Fatalf("expected one sent session, got %v", got)
	}
	if got := AcceptedCount() - beforeAccepted; got != 1 {
		t.Fatalf("expected one accepted connection, got %v", got)
	}
	if got := testutil.ToFloat64(activeSlots); got != 0 {
		t.Fatalf("expected active gauge 0, got %v", got)
	}
}
