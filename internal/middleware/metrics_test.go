package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockHTTPMetrics struct {
	statuses []int
}

func (m *mockHTTPMetrics) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func TestHTTPMetricsMiddleware_RecordsStatus(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{
			name:    "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
			want:    http.StatusTeapot,
		},
		{
			name:    "implicit 200",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) },
			want:    http.StatusOK,
		},
		{
			name:    "redirect",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/sign-in", http.StatusTemporaryRedirect) },
			want:    http.StatusTemporaryRedirect,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockHTTPMetrics{}
			h := NewHTTPMetricsMiddleware(m)(tt.handler)
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			if len(m.statuses) != 1 || m.statuses[0] != tt.want {
				t.Errorf("statuses = %v, want [%d]", m.statuses, tt.want)
			}
		})
	}
}
