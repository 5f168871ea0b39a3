package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"marketplace-catalog/internal/catalog"
	"marketplace-catalog/internal/catalogapi"
	"marketplace-catalog/internal/category"
	"marketplace-catalog/internal/logger"
	"marketplace-catalog/internal/transport"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// Catalog is the part of catalog.Session the handlers use.
type Catalog interface {
	Index() *category.Index
	State() catalog.State
	Stats() catalog.Stats
	Refresh(ctx context.Context) error
	ScopedSubcategories(ctx context.Context, categoryID string) ([]category.Subcategory, error)
}

type Handler struct {
	catalog Catalog
}

func NewHandler(c Catalog) *Handler {
	return &Handler{catalog: c}
}

type navSubcategory struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

type navCategory struct {
	ID            string           `json:"id"`
	Label         string           `json:"label"`
	Slug          string           `json:"slug"`
	Image         string           `json:"image,omitempty"`
	Subcategories []navSubcategory `json:"subcategories"`
}

type navResponse struct {
	Lang       string        `json:"lang"`
	Dir        string        `json:"dir"`
	Categories []navCategory `json:"categories"`
	Error      string        `json:"error,omitempty"`
}

type option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type filterResponse struct {
	Lang          string   `json:"lang"`
	Dir           string   `json:"dir"`
	Categories    []option `json:"categories"`
	Selected      string   `json:"selected"`
	Subcategories []option `json:"subcategories"`
}

type healthResponse struct {
	State catalog.State `json:"state"`
	Stats catalog.Stats `json:"stats"`
}

// requestLang reads ?lang= first, then Accept-Language.
func requestLang(r *http.Request) string {
	if v := r.URL.Query().Get("lang"); v != "" {
		return category.NormalizeLang(v)
	}
	return category.NormalizeLang(r.Header.Get("Accept-Language"))
}

// Navigation serves the header dropdown: every category with its
// subcategories, labelled in the request language.
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	lang := requestLang(r)
	idx := h.catalog.Index()

	cats := idx.Categories()
	out := make([]navCategory, 0, len(cats))
	for _, c := range cats {
		nc := navCategory{
			ID:            c.ID,
			Label:         category.LocalizedLabel(c, lang),
			Slug:          slug.Make(c.Name),
			Subcategories: []navSubcategory{},
		}
		if c.Image != nil {
			nc.Image = c.Image.URL
		}
		for _, sc := range idx.SubcategoriesOf(c.ID) {
			nc.Subcategories = append(nc.Subcategories, navSubcategory{
				ID:    sc.ID,
				Label: category.LocalizedLabel(sc, lang),
				Slug:  slug.Make(sc.Name),
			})
		}
		out = append(out, nc)
	}

	transport.WriteJSON(w, http.StatusOK, navResponse{
		Lang:       lang,
		Dir:        category.Direction(lang),
		Categories: out,
		Error:      h.catalog.State().Err,
	})
}

// Filters serves the catalog filter panel.
func (h *Handler) Filters(w http.ResponseWriter, r *http.Request) {
	lang := requestLang(r)
	idx := h.catalog.Index()
	selected := r.URL.Query().Get("category")

	transport.WriteJSON(w, http.StatusOK, h.options(idx, lang, selected, idx.SubcategoriesOf(selected)))
}

// FormCategories serves the category pickers of the product and event
// forms. With scoped=true the subcategories come from the backend's scoped
// endpoint instead of the held index.
func (h *Handler) FormCategories(w http.ResponseWriter, r *http.Request) {
	lang := requestLang(r)
	idx := h.catalog.Index()
	selected := r.URL.Query().Get("category")

	subs := idx.SubcategoriesOf(selected)

	scoped, _ := strconv.ParseBool(r.URL.Query().Get("scoped"))
	if scoped && selected != "" {
		var err error
		subs, err = h.catalog.ScopedSubcategories(r.Context(), selected)
		if err != nil {
			writeCatalogError(w, r, err)
			return
		}
	}

	transport.WriteJSON(w, http.StatusOK, h.options(idx, lang, selected, subs))
}

func (h *Handler) options(idx *category.Index, lang, selected string, subs []category.Subcategory) filterResponse {
	cats := idx.Categories()
	resp := filterResponse{
		Lang:          lang,
		Dir:           category.Direction(lang),
		Categories:    make([]option, 0, len(cats)),
		Subcategories: make([]option, 0, len(subs)),
	}
	for _, c := range cats {
		resp.Categories = append(resp.Categories, option{ID: c.ID, Label: category.LocalizedLabel(c, lang)})
	}
	if _, ok := idx.CategoryByID(selected); ok {
		resp.Selected = selected
	}
	for _, sc := range subs {
		resp.Subcategories = append(resp.Subcategories, option{ID: sc.ID, Label: category.LocalizedLabel(sc, lang)})
	}
	return resp
}

// Refresh triggers a manual refetch of the category collection.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(r.Context()); err != nil {
		writeCatalogError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, h.catalog.State())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, healthResponse{
		State: h.catalog.State(),
		Stats: h.catalog.Stats(),
	})
}

func writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromCtx(r.Context())

	switch {
	case errors.Is(err, catalog.ErrStale):
		log.Info("request superseded by a newer refresh")
		transport.WriteJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, catalog.ErrClosed):
		transport.WriteJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, catalogapi.ErrFetchFailed):
		transport.WriteJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		log.Error("catalog request failed", zap.Error(err))
		transport.WriteJSONError(w, err.Error(), http.StatusBadGateway)
	}
}
