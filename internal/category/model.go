package category

import (
	"bytes"
	"encoding/json"

	"marketplace-catalog/internal/logger"

	"go.uber.org/zap"
)

type Image struct {
	URL string `json:"url"`
}

type Category struct {
	ID            string        `json:"_id"`
	Name          string        `json:"name"`
	NameFr        string        `json:"nameFr,omitempty"`
	NameAr        string        `json:"nameAr,omitempty"`
	Image         *Image        `json:"image,omitempty"`
	Subcategories []Subcategory `json:"subcategories,omitempty"`
}

type Subcategory struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name"`
	NameFr   string   `json:"nameFr,omitempty"`
	NameAr   string   `json:"nameAr,omitempty"`
	Image    *Image   `json:"image,omitempty"`
	Category OwnerRef `json:"category"`
}

func (c Category) Labels() Labels {
	return Labels{Name: c.Name, NameFr: c.NameFr, NameAr: c.NameAr}
}

func (s Subcategory) Labels() Labels {
	return Labels{Name: s.Name, NameFr: s.NameFr, NameAr: s.NameAr}
}

// clone returns a copy that shares no slices or pointers with c.
func (c Category) clone() Category {
	out := c
	out.Image = c.Image.clone()
	if c.Subcategories != nil {
		out.Subcategories = make([]Subcategory, len(c.Subcategories))
		for i, sc := range c.Subcategories {
			out.Subcategories[i] = sc.clone()
		}
	}
	return out
}

func (s Subcategory) clone() Subcategory {
	out := s
	out.Image = s.Image.clone()
	return out
}

func (i *Image) clone() *Image {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}

// OwnerRef is the owning category of a subcategory. The backend sends it
// either as a plain id or as an embedded category object.
type OwnerRef struct {
	id       string
	embedded *Category
}

func ScalarRef(id string) OwnerRef {
	return OwnerRef{id: id}
}

func EmbeddedRef(c Category) OwnerRef {
	cp := c
	cp.Subcategories = nil
	return OwnerRef{embedded: &cp}
}

// ID resolves the reference to the owner's identifier.
func (r OwnerRef) ID() string {
	if r.embedded != nil {
		return r.embedded.ID
	}
	return r.id
}

func (r OwnerRef) IsEmbedded() bool { return r.embedded != nil }

func (r OwnerRef) IsZero() bool { return r.ID() == "" }

// Scalar drops the embedded record and keeps only the id.
func (r OwnerRef) Scalar() OwnerRef {
	return ScalarRef(r.ID())
}

func (r OwnerRef) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID())
}

// UnmarshalJSON never fails on a bad owner. Anything that is not an id or
// a decodable category object becomes a zero reference, which the index
// treats as an orphan.
func (r *OwnerRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = OwnerRef{}

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var id string
		if err := json.Unmarshal(data, &id); err == nil {
			*r = ScalarRef(id)
		}
	case data[0] == '{':
		var c Category
		if err := json.Unmarshal(data, &c); err == nil {
			*r = EmbeddedRef(c)
		} else {
			logger.L().Debug("ignoring undecodable embedded category", zap.Error(err))
		}
	default:
		logger.L().Debug("ignoring category reference of unexpected shape", zap.ByteString("value", data))
	}
	return nil
}

// UnmarshalJSON accepts subcategories as full records or as bare ids.
// Elements of any other shape are dropped.
func (c *Category) UnmarshalJSON(data []byte) error {
	type plain Category
	var aux struct {
		plain
		Subcategories []json.RawMessage `json:"subcategories"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*c = Category(aux.plain)
	c.Subcategories = nil
	if aux.Subcategories == nil {
		return nil
	}

	c.Subcategories = make([]Subcategory, 0, len(aux.Subcategories))
	for _, raw := range aux.Subcategories {
		sc, ok := decodeSubcategory(raw)
		if !ok {
			logger.L().Debug("dropping subcategory entry",
				zap.String("category_id", c.ID),
				zap.ByteString("value", raw),
			)
			continue
		}
		c.Subcategories = append(c.Subcategories, sc)
	}
	return nil
}

func decodeSubcategory(raw json.RawMessage) (Subcategory, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Subcategory{}, false
	}

	switch raw[0] {
	case '"':
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || id == "" {
			return Subcategory{}, false
		}
		return Subcategory{ID: id}, true
	case '{':
		var sc Subcategory
		if err := json.Unmarshal(raw, &sc); err != nil {
			return Subcategory{}, false
		}
		return sc, true
	default:
		return Subcategory{}, false
	}
}
