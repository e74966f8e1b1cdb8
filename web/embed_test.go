package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestSPAHandler(t *testing.T) {
	root := fstest.MapFS{
		"index.html": {Data: []byte("<html>dashboard</html>")},
		"app.js":     {Data: []byte("console.log(1)")},
	}
	h := newSPAHandler(root)

	cases := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, "dashboard"},
		{"/app.js", http.StatusOK, "console.log"},
		{"/mistral-chat", http.StatusOK, "dashboard"},
		{"/api/unknown", http.StatusNotFound, ""},
		{"/ws/unknown", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.path, rec.Code, tc.status)
		}
		if tc.body != "" && !strings.Contains(rec.Body.String(), tc.body) {
			t.Errorf("%s: body %q missing %q", tc.path, rec.Body.String(), tc.body)
		}
	}
}

func TestEmbeddedIndex(t *testing.T) {
	rec := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Lead Intelligence") {
		t.Fatalf("unexpected index response: %d", rec.Code)
	}
}
