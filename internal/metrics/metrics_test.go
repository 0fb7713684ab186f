package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveExtraction(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(extractions.WithLabelValues("groq", "m", "success"))
	ObserveExtraction("groq", "m", "success", 1500*time.Millisecond)
	if got := testutil.ToFloat64(extractions.WithLabelValues("groq", "m", "success")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}

	IncRejected("extension")
	if got := testutil.ToFloat64(uploadsRejected.WithLabelValues("extension")); got < 1 {
		t.Errorf("expected rejected counter to move, got %v", got)
	}
	ObservePayload(4096)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "dococr_extractions_total") {
		t.Error("expected dococr_extractions_total in /metrics output")
	}
}
