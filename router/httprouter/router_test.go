package httprouter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterDispatchesGetAndPost(t *testing.T) {
	r := New()

	var gotMethod string
	r.Get("/widgets/:id", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotMethod = req.Method
		params := NewParamGeter().Get(req.Context())
		id, ok := params.Get("id")
		if !ok || id != "42" {
			t.Fatalf("expected path param id=42, got %q ok=%v", id, ok)
		}
		w.WriteHeader(http.StatusOK)
	}))
	r.Post("/widgets", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotMethod = req.Method
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/42", nil))
	if rec.Code != http.StatusOK || gotMethod != http.MethodGet {
		t.Fatalf("expected 200/GET, got %d/%s", rec.Code, gotMethod)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/widgets", nil))
	if rec.Code != http.StatusCreated || gotMethod != http.MethodPost {
		t.Fatalf("expected 201/POST, got %d/%s", rec.Code, gotMethod)
	}
}

func TestRouterReturns404ForUnmatchedRoute(t *testing.T) {
	r := New()
	r.Get("/widgets", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
