package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	var reached bool
	handler := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		wantOrigin  string
		wantCreds   string
		wantStatus  int
		wantReached bool
	}{
		{"allowed origin is echoed", http.MethodPost, "https://app.example.com", "https://app.example.com", "true", http.StatusNoContent, true},
		{"other origin gets no headers", http.MethodPost, "https://evil.example.com", "", "", http.StatusNoContent, true},
		{"same origin request", http.MethodPost, "", "", "", http.StatusNoContent, true},
		{"preflight stops here", http.MethodOptions, "https://app.example.com", "https://app.example.com", "true", http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, "/groupsplit.v1.AuthService/Refresh", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantReached, reached)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, rec.Header().Get("Access-Control-Allow-Credentials"))
			assert.NotEqual(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "Origin", rec.Header().Get("Vary"))
		})
	}
}
