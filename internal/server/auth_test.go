package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		apiKey    string
		header    string
		wantCode  int
		wantError string
	}{
		{"disabled", "", "", http.StatusOK, ""},
		{"disabled ignores header", "", "Bearer anything", http.StatusOK, ""},
		{"missing header", "secret", "", http.StatusUnauthorized, ""},
		{"wrong token", "secret", "Bearer wrong-token", http.StatusUnauthorized, "invalid_token"},
		{"prefix of key", "secret", "Bearer secre", http.StatusUnauthorized, "invalid_token"},
		{"correct token", "secret", "Bearer secret", http.StatusOK, ""},
		{"lowercase scheme", "secret", "bearer secret", http.StatusOK, ""},
		{"basic scheme", "secret", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
	}

	for _, tc := range cases {
		h := authMiddleware(tc.apiKey, okHandler)
		req := httptest.NewRequest(http.MethodGet, "/batches/b1", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != tc.wantCode {
			t.Errorf("%s: want %d, got %d", tc.name, tc.wantCode, w.Code)
			continue
		}
		if tc.wantCode != http.StatusUnauthorized {
			continue
		}
		wa := w.Header().Get("WWW-Authenticate")
		if !strings.Contains(wa, `realm="resumechat"`) {
			t.Errorf("%s: challenge missing realm: %q", tc.name, wa)
		}
		if tc.wantError != "" && !strings.Contains(wa, `error="`+tc.wantError+`"`) {
			t.Errorf("%s: challenge missing error code: %q", tc.name, wa)
		}
		var body errorBody
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Error == "" {
			t.Errorf("%s: expected JSON error body, got %q", tc.name, w.Body.String())
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer mytoken", "mytoken", true},
		{"bearer mytoken", "mytoken", true},
		{"BEARER mytoken", "mytoken", true},
		{"Bearer  spaced ", "spaced", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"token only", "", false},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, ok := bearerToken(req)
		if got != tc.want || ok != tc.ok {
			t.Errorf("header=%q: want (%q, %v), got (%q, %v)", tc.header, tc.want, tc.ok, got, ok)
		}
	}
}
