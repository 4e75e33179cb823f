package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestObserveExtraction(t *testing.T) {
	m := New()
	m.ObserveExtraction("markdown", time.Millisecond, nil)
	m.ObserveExtraction("markdown", time.Millisecond, nil)
	m.ObserveExtraction("markup", time.Millisecond, errors.New("boom"))

	out := scrape(t, m)
	for _, want := range []string{
		`marginalia_notes_extracted_total{format="markdown",result="ok"} 2`,
		`marginalia_notes_extracted_total{format="markup",result="error"} 1`,
		`marginalia_extraction_duration_seconds_count{format="markdown"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestSetIndexed(t *testing.T) {
	m := New()
	m.SetIndexed(42)
	if out := scrape(t, m); !strings.Contains(out, "marginalia_indexed_notes 42") {
		t.Errorf("gauge not exported:\n%s", out)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveExtraction("markdown", time.Second, nil)
	m.SetIndexed(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
