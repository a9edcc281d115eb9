package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRegister(t *testing.T) {
	before := testutil.ToFloat64(RecognizerRestarts.WithLabelValues("no_speech"))
	RecognizerRestarts.WithLabelValues("no_speech").Inc()
	if got := testutil.ToFloat64(RecognizerRestarts.WithLabelValues("no_speech")); got != before+1 {
		t.Errorf("restarts = %v, want %v", got, before+1)
	}

	ActiveSessions.WithLabelValues("face").Inc()
	ActiveSessions.WithLabelValues("face").Dec()
	if got := testutil.ToFloat64(ActiveSessions.WithLabelValues("face")); got != 0 {
		t.Errorf("active = %v", got)
	}
}
