package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestHandlerExposesMixerMetrics(t *testing.T) {
	DecodesTotal.WithLabelValues("ok").Inc()
	LiveVoices.Set(2)

	body := scrape(t)
	for _, name := range []string{
		"soundscape_decodes_total",
		"soundscape_live_voices 2",
		"soundscape_fetch_bytes_total",
		"soundscape_dropped_frames_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/v1/presets/{presetID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/presets/abc", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}

	body := scrape(t)
	want := `soundscape_api_requests_total{endpoint="/api/v1/presets/{presetID}",method="GET",status="418"} 1`
	if !strings.Contains(body, want) {
		t.Errorf("metrics output missing %s", want)
	}
}
