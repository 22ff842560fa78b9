package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		apiKey         string
		requestHeader  string
		expectedStatus int
	}{
		{
			name:           "valid API key",
			apiKey:         "test-key",
			requestHeader:  "test-key",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing API key header",
			apiKey:         "test-key",
			requestHeader:  "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid API key",
			apiKey:         "test-key",
			requestHeader:  "wrong-key",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "key prefix is not enough",
			apiKey:         "test-key",
			requestHeader:  "test",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "authentication disabled",
			apiKey:         "",
			requestHeader:  "",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create a test handler that just returns 200
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			handler := apiKeyMiddleware(tt.apiKey, nil)(testHandler)

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.requestHeader != "" {
				req.Header.Set("X-API-Key", tt.requestHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusUnauthorized &&
				!strings.Contains(w.Header().Get("Content-Type"), "application/json") {
				t.Errorf("Expected JSON error response, got %q", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestAPIKeyMiddleware_RecordsMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	handler := apiKeyMiddleware("test-key", metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// An empty key means the header is left off entirely
	for _, key := range []string{"test-key", "wrong-key", "test-key", ""} {
		req := httptest.NewRequest("GET", "/test", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(metrics.authRequestsTotal.WithLabelValues(statusSuccess)); got != 2 {
		t.Errorf("Expected 2 successful auth requests, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.authRequestsTotal.WithLabelValues(statusError)); got != 2 {
		t.Errorf("Expected 2 failed auth requests, got %v", got)
	}
}

func TestSendError(t *testing.T) {
	w := httptest.NewRecorder()
	sendErrorCode(w, "chunk crc mismatch", "crc_mismatch", http.StatusUnprocessableEntity)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}
	expected := `{"success":false,"error":"chunk crc mismatch","code":"crc_mismatch"}`
	if strings.TrimSpace(w.Body.String()) != expected {
		t.Errorf("Expected body %s, got %s", expected, w.Body.String())
	}
}
