package category

// Index is the two-level view of the catalog: categories as the backend
// returned them and every subcategory flattened with a scalar owner id.
// An Index is never mutated after construction.
type Index struct {
	categories    []Category
	subcategories []Subcategory

	categoryPos    map[string]int
	subcategoryPos map[string]int
	byOwner        map[string][]int
}

var empty = Build(nil)

// Empty returns an index with no categories.
func Empty() *Index { return empty }

// Build flattens the subcategories embedded in each category. The flattened
// order follows the categories, then the subcategories inside each one.
// Every flattened subcategory points at its parent by id, whatever the
// embedded record said.
func Build(raw []Category) *Index {
	cats := make([]Category, len(raw))
	subs := make([]Subcategory, 0)

	for i, c := range raw {
		cats[i] = c.clone()
		for _, sc := range c.Subcategories {
			flat := sc.clone()
			flat.Category = ScalarRef(c.ID)
			subs = append(subs, flat)
		}
	}

	return newIndex(cats, subs)
}

// FromFlat builds an index from a category list and a separately fetched
// subcategory list. Embedded subcategories on the categories are not merged
// in; subs is the only source of subcategories.
func FromFlat(categories []Category, subs []Subcategory) *Index {
	cats := make([]Category, len(categories))
	for i, c := range categories {
		cats[i] = c.clone()
	}

	return newIndex(cats, NormalizeOwners(subs, ""))
}

// NormalizeOwners returns copies of subs with every owner reduced to a
// scalar id. Records without an owner get fallback.
func NormalizeOwners(subs []Subcategory, fallback string) []Subcategory {
	out := make([]Subcategory, len(subs))
	for i, sc := range subs {
		out[i] = sc.clone()
		if sc.Category.IsZero() {
			out[i].Category = ScalarRef(fallback)
			continue
		}
		out[i].Category = sc.Category.Scalar()
	}
	return out
}

func newIndex(cats []Category, subs []Subcategory) *Index {
	idx := &Index{
		categories:     cats,
		subcategories:  subs,
		categoryPos:    make(map[string]int, len(cats)),
		subcategoryPos: make(map[string]int, len(subs)),
		byOwner:        make(map[string][]int, len(cats)),
	}

	// first occurrence wins for duplicate ids
	for i, c := range cats {
		if _, ok := idx.categoryPos[c.ID]; !ok {
			idx.categoryPos[c.ID] = i
		}
	}
	for i, sc := range subs {
		if _, ok := idx.subcategoryPos[sc.ID]; !ok {
			idx.subcategoryPos[sc.ID] = i
		}
		owner := sc.Category.ID()
		if _, ok := idx.categoryPos[owner]; !ok {
			continue
		}
		idx.byOwner[owner] = append(idx.byOwner[owner], i)
	}

	return idx
}

// Categories returns a copy of the category list in source order.
func (idx *Index) Categories() []Category {
	if idx == nil {
		return []Category{}
	}
	out := make([]Category, len(idx.categories))
	for i, c := range idx.categories {
		out[i] = c.clone()
	}
	return out
}

// Subcategories returns a copy of the flattened subcategory list.
func (idx *Index) Subcategories() []Subcategory {
	if idx == nil {
		return []Subcategory{}
	}
	out := make([]Subcategory, len(idx.subcategories))
	for i, sc := range idx.subcategories {
		out[i] = sc.clone()
	}
	return out
}

// SubcategoriesOf returns the subcategories owned by categoryID. Unknown ids
// and orphaned subcategories yield an empty slice.
func (idx *Index) SubcategoriesOf(categoryID string) []Subcategory {
	if idx == nil {
		return []Subcategory{}
	}
	positions := idx.byOwner[categoryID]
	out := make([]Subcategory, 0, len(positions))
	for _, i := range positions {
		out = append(out, idx.subcategories[i].clone())
	}
	return out
}

func (idx *Index) CategoryByID(id string) (Category, bool) {
	if idx == nil {
		return Category{}, false
	}
	i, ok := idx.categoryPos[id]
	if !ok {
		return Category{}, false
	}
	return idx.categories[i].clone(), true
}

func (idx *Index) SubcategoryByID(id string) (Subcategory, bool) {
	if idx == nil {
		return Subcategory{}, false
	}
	i, ok := idx.subcategoryPos[id]
	if !ok {
		return Subcategory{}, false
	}
	return idx.subcategories[i].clone(), true
}

// Orphans lists subcategories whose owner is not a category of this index.
func (idx *Index) Orphans() []Subcategory {
	if idx == nil {
		return []Subcategory{}
	}
	out := make([]Subcategory, 0)
	for _, sc := range idx.subcategories {
		if _, ok := idx.categoryPos[sc.Category.ID()]; !ok {
			out = append(out, sc.clone())
		}
	}
	return out
}

func (idx *Index) Len() (categories, subcategories int) {
	if idx == nil {
		return 0, 0
	}
	return len(idx.categories), len(idx.subcategories)
}
