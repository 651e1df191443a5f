package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/models"
	"github.com/ansonkao/time-tracker/internal/store"
)

func newCategoryRouter(t *testing.T) (*mux.Router, *store.CategoryStore) {
	t.Helper()
	categories := store.NewCategoryStore(store.NewMemoryKV(), zap.NewNop())
	h := NewCategoryHandler(categories)
	r := mux.NewRouter()
	h.RegisterRoutes(r.PathPrefix("/api/v1/categories").Subrouter())
	return r, categories
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var out T
	if err := json.Unmarshal(envelope.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func TestCreateAndListCategories(t *testing.T) {
	t.Parallel()
	r, _ := newCategoryRouter(t)

	w := httptest.NewRecorder()
	req := newTestRequest("POST", "/api/v1/categories", map[string]string{
		"name":  "Deep Work",
		"color": "#336699",
	})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decodeData[models.Category](t, w.Result())
	if created.ID == "" {
		t.Error("created category should have an ID")
	}
	if created.Name != "Deep Work" || created.Color != "#336699" {
		t.Errorf("created = %+v", created)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/categories", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	listed := decodeData[[]models.Category](t, w.Result())
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Errorf("listed = %+v", listed)
	}
}

func TestCreateCategoryValidation(t *testing.T) {
	t.Parallel()
	r, _ := newCategoryRouter(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"color": "#336699"}},
		{"missing color", map[string]string{"name": "Meetings"}},
		{"bad color", map[string]string{"name": "Meetings", "color": "blue"}},
		{"whitespace name", map[string]string{"name": "   ", "color": "#336699"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, newTestRequest("POST", "/api/v1/categories", tt.body))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestUpdateCategory(t *testing.T) {
	t.Parallel()
	r, categories := newCategoryRouter(t)
	cat, err := categories.Add(t.Context(), "Meetings", "#ff0000")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newTestRequest("PATCH", "/api/v1/categories/"+cat.ID, map[string]string{
		"name": "1:1s",
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	updated := decodeData[models.Category](t, w.Result())
	if updated.Name != "1:1s" {
		t.Errorf("name = %q, want 1:1s", updated.Name)
	}
	if updated.Color != "#ff0000" {
		t.Errorf("color should be unchanged, got %q", updated.Color)
	}
}

func TestUpdateCategoryNotFound(t *testing.T) {
	t.Parallel()
	r, _ := newCategoryRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newTestRequest("PATCH", "/api/v1/categories/nope", map[string]string{
		"name": "Anything",
	}))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteCategory(t *testing.T) {
	t.Parallel()
	r, categories := newCategoryRouter(t)
	cat, _ := categories.Add(t.Context(), "Meetings", "#ff0000")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/v1/categories/"+cat.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	remaining, _ := categories.List(t.Context())
	if len(remaining) != 0 {
		t.Errorf("remaining = %+v", remaining)
	}
}

func TestReorderCategories(t *testing.T) {
	t.Parallel()
	r, categories := newCategoryRouter(t)
	a, _ := categories.Add(t.Context(), "A", "#111111")
	b, _ := categories.Add(t.Context(), "B", "#222222")
	c, _ := categories.Add(t.Context(), "C", "#333333")

	src, dst := 2, 0
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newTestRequest("POST", "/api/v1/categories/reorder", map[string]*int{
		"source_index": &src,
		"dest_index":   &dst,
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	ordered := decodeData[[]models.Category](t, w.Result())
	want := []string{c.ID, a.ID, b.ID}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Errorf("ordered[%d].ID = %s, want %s", i, ordered[i].ID, id)
		}
	}
}

func TestReorderCategoriesOutOfRange(t *testing.T) {
	t.Parallel()
	r, categories := newCategoryRouter(t)
	_, _ = categories.Add(t.Context(), "A", "#111111")

	src, dst := 5, 0
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newTestRequest("POST", "/api/v1/categories/reorder", map[string]*int{
		"source_index": &src,
		"dest_index":   &dst,
	}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
