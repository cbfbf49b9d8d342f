package menu

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/orderboard/internal/domain"
)

type fakeCatalog struct {
	items map[string]domain.MenuItem
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{items: make(map[string]domain.MenuItem)}
}

func (f *fakeCatalog) sorted(all bool) []domain.MenuItem {
	out := []domain.MenuItem{}
	for _, item := range f.items {
		if all || item.Available {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (f *fakeCatalog) ListAvailable(_ context.Context) ([]domain.MenuItem, error) {
	return f.sorted(false), nil
}

func (f *fakeCatalog) ListAll(_ context.Context) ([]domain.MenuItem, error) {
	return f.sorted(true), nil
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*domain.MenuItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (f *fakeCatalog) Create(_ context.Context, item *domain.MenuItem) error {
	item.ID = uuid.New().String()
	item.CreatedAt = time.Now().UTC()
	f.items[item.ID] = *item
	return nil
}

func (f *fakeCatalog) Update(_ context.Context, item *domain.MenuItem) (bool, error) {
	if _, ok := f.items[item.ID]; !ok {
		return false, nil
	}
	f.items[item.ID] = *item
	return true, nil
}

func (f *fakeCatalog) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := f.items[id]; !ok {
		return false, nil
	}
	delete(f.items, id)
	return true, nil
}

func testMux(catalog Catalog) *http.ServeMux {
	h := NewHandler(catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/menu", h.HandleListAvailable)
	mux.HandleFunc("GET /api/menu/items", h.HandleListAll)
	mux.HandleFunc("POST /api/menu/items", h.HandleCreate)
	mux.HandleFunc("PUT /api/menu/items/{id}", h.HandleUpdate)
	mux.HandleFunc("DELETE /api/menu/items/{id}", h.HandleDelete)
	return mux
}

func TestMenuCRUD(t *testing.T) {
	catalog := newFakeCatalog()
	mux := testMux(catalog)

	var created domain.MenuItem

	t.Run("create", func(t *testing.T) {
		body := `{"name":"burger","price":100,"category":"mains","description":"house burger"}`
		req := httptest.NewRequest(http.MethodPost, "/api/menu/items", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if created.ID == "" {
			t.Error("expected id to be assigned")
		}
		if !created.Available {
			t.Error("expected new items to default to available")
		}
	})

	t.Run("create rejects missing name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/menu/items", strings.NewReader(`{"price":100}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("update toggles availability", func(t *testing.T) {
		body := `{"name":"burger","price":120,"category":"mains","available":false}`
		req := httptest.NewRequest(http.MethodPut, "/api/menu/items/"+created.ID, strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var updated domain.MenuItem
		if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if updated.Price != 120 || updated.Available {
			t.Errorf("unexpected item after update: %+v", updated)
		}
	})

	t.Run("customer menu hides unavailable items", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		var items []domain.MenuItem
		if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected empty menu, got %d items", len(items))
		}

		req = httptest.NewRequest(http.MethodGet, "/api/menu/items", nil)
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(items) != 1 {
			t.Errorf("expected 1 item in admin view, got %d", len(items))
		}
	})

	t.Run("delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/menu/items/"+created.ID, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		req = httptest.NewRequest(http.MethodDelete, "/api/menu/items/"+created.ID, nil)
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", rec.Code)
		}
	})

	t.Run("update missing item returns 404", func(t *testing.T) {
		body := `{"name":"ghost","price":1}`
		req := httptest.NewRequest(http.MethodPut, "/api/menu/items/unknown", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
