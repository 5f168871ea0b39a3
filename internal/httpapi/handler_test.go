package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-catalog/internal/auth"
	"marketplace-catalog/internal/catalog"
	"marketplace-catalog/internal/catalogapi"
	"marketplace-catalog/internal/category"
	"marketplace-catalog/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// stubClient serves fixed collections; err, when set, fails every call.
type stubClient struct {
	categories []category.Category
	scoped     map[string][]category.Subcategory
	err        error
}

func (s *stubClient) Categories(context.Context) ([]category.Category, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.categories, nil
}

func (s *stubClient) AllSubcategories(context.Context) ([]category.Subcategory, error) {
	return nil, errors.New("not used")
}

func (s *stubClient) SubcategoriesOf(_ context.Context, id string) ([]category.Subcategory, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scoped[id], nil
}

func fixtureCategories() []category.Category {
	return []category.Category{
		{
			ID:     "c1",
			Name:   "Women Shoes",
			NameFr: "Chaussures femme",
			NameAr: "أحذية نسائية",
			Image:  &category.Image{URL: "https://cdn.example.com/shoes.png"},
			Subcategories: []category.Subcategory{
				{ID: "s1", Name: "Ankle Boots", NameFr: "Bottines"},
				{ID: "s2", Name: "Sandals", Category: category.EmbeddedRef(category.Category{ID: "c1"})},
			},
		},
		{ID: "c2", Name: "Bags", NameFr: "Sacs"},
	}
}

func newTestServer(t *testing.T, client *stubClient) (http.Handler, *catalog.Session) {
	t.Helper()
	session := catalog.NewSession(client)
	t.Cleanup(session.Close)

	h := NewHandler(session)
	router := NewRouter(h, RouterConfig{
		CORSOrigin: "http://localhost:3000",
		Verifier:   auth.NewVerifier(testSecret),
		Limiter:    middleware.NewRateLimiter(),
	})
	return router, session
}

func do(t *testing.T, h http.Handler, req *http.Request, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-1",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestNavigation(t *testing.T) {
	router, session := newTestServer(t, &stubClient{categories: fixtureCategories()})
	require.NoError(t, session.Refresh(context.Background()))

	t.Run("French labels with fallback", func(t *testing.T) {
		var resp navResponse
		w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/nav?lang=fr", nil), &resp)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "fr", resp.Lang)
		assert.Equal(t, "ltr", resp.Dir)
		require.Len(t, resp.Categories, 2)

		shoes := resp.Categories[0]
		assert.Equal(t, "Chaussures femme", shoes.Label)
		assert.Equal(t, "women-shoes", shoes.Slug)
		assert.Equal(t, "https://cdn.example.com/shoes.png", shoes.Image)
		require.Len(t, shoes.Subcategories, 2)
		assert.Equal(t, "Bottines", shoes.Subcategories[0].Label)
		assert.Equal(t, "ankle-boots", shoes.Subcategories[0].Slug)
		assert.Equal(t, "Sandals", shoes.Subcategories[1].Label)

		assert.NotNil(t, resp.Categories[1].Subcategories)
		assert.Empty(t, resp.Categories[1].Subcategories)
	})

	t.Run("Arabic from Accept-Language is rtl", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/nav", nil)
		req.Header.Set("Accept-Language", "ar-SA,ar;q=0.9")

		var resp navResponse
		do(t, router, req, &resp)

		assert.Equal(t, "ar", resp.Lang)
		assert.Equal(t, "rtl", resp.Dir)
		assert.Equal(t, "أحذية نسائية", resp.Categories[0].Label)
		assert.Equal(t, "Bags", resp.Categories[1].Label)
	})

	t.Run("Unknown language defaults to English", func(t *testing.T) {
		var resp navResponse
		do(t, router, httptest.NewRequest(http.MethodGet, "/api/nav?lang=de", nil), &resp)

		assert.Equal(t, "en", resp.Lang)
		assert.Equal(t, "Women Shoes", resp.Categories[0].Label)
	})
}

func TestNavigation_StaleButValid(t *testing.T) {
	client := &stubClient{categories: fixtureCategories()}
	router, session := newTestServer(t, client)
	require.NoError(t, session.Refresh(context.Background()))

	client.err = &catalogapi.FetchError{Op: "categories", Message: "Categories unavailable"}

	var refreshErr map[string]string
	w := do(t, router, httptest.NewRequest(http.MethodPost, "/api/refresh", nil), &refreshErr)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Categories unavailable", refreshErr["error"])

	var resp navResponse
	do(t, router, httptest.NewRequest(http.MethodGet, "/api/nav", nil), &resp)
	assert.Len(t, resp.Categories, 2)
	assert.Equal(t, "Categories unavailable", resp.Error)
}

func TestFilters(t *testing.T) {
	router, session := newTestServer(t, &stubClient{categories: fixtureCategories()})
	require.NoError(t, session.Refresh(context.Background()))

	t.Run("Selected category", func(t *testing.T) {
		var resp filterResponse
		do(t, router, httptest.NewRequest(http.MethodGet, "/api/filters?category=c1&lang=fr", nil), &resp)

		assert.Equal(t, "c1", resp.Selected)
		assert.Len(t, resp.Categories, 2)
		require.Len(t, resp.Subcategories, 2)
		assert.Equal(t, "Bottines", resp.Subcategories[0].Label)
	})

	t.Run("Unknown category is empty, not an error", func(t *testing.T) {
		var resp filterResponse
		w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/filters?category=nope", nil), &resp)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, resp.Selected)
		assert.NotNil(t, resp.Subcategories)
		assert.Empty(t, resp.Subcategories)
	})
}

func TestFormCategories(t *testing.T) {
	client := &stubClient{
		categories: fixtureCategories(),
		scoped: map[string][]category.Subcategory{
			"c2": {{ID: "s9", Name: "Backpacks", NameFr: "Sacs à dos"}},
		},
	}
	router, session := newTestServer(t, client)
	require.NoError(t, session.Refresh(context.Background()))

	t.Run("Anonymous is rejected", func(t *testing.T) {
		w := do(t, router, httptest.NewRequest(http.MethodGet, "/api/forms/categories", nil), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Customer is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/forms/categories", nil)
		req.Header.Set("Authorization", bearer(t, auth.RoleCustomer))

		w := do(t, router, req, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Seller gets index subcategories", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/forms/categories?category=c1", nil)
		req.Header.Set("Authorization", bearer(t, auth.RoleSeller))

		var resp filterResponse
		w := do(t, router, req, &resp)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, resp.Subcategories, 2)
	})

	t.Run("Admin with scoped fetch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/forms/categories?category=c2&scoped=true&lang=fr", nil)
		req.Header.Set("Authorization", bearer(t, auth.RoleAdmin))

		var resp filterResponse
		w := do(t, router, req, &resp)
		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, resp.Subcategories, 1)
		assert.Equal(t, "Sacs à dos", resp.Subcategories[0].Label)
	})
}

func TestRefreshAndHealth(t *testing.T) {
	router, _ := newTestServer(t, &stubClient{categories: fixtureCategories()})

	var health healthResponse
	do(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil), &health)
	assert.Zero(t, health.State.Categories)

	var st catalog.State
	w := do(t, router, httptest.NewRequest(http.MethodPost, "/api/refresh", nil), &st)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, st.Categories)
	assert.Equal(t, 2, st.Subcategories)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	do(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil), &health)
	assert.Equal(t, uint64(1), health.Stats.Refreshes)
	assert.Equal(t, 2, health.State.Categories)
}

func TestWriteCatalogError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Stale", catalog.ErrStale, http.StatusConflict},
		{"Closed", catalog.ErrClosed, http.StatusServiceUnavailable},
		{"Fetch", &catalogapi.FetchError{Message: "down"}, http.StatusBadGateway},
		{"Other", errors.New("boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeCatalogError(w, httptest.NewRequest(http.MethodPost, "/api/refresh", nil), tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
