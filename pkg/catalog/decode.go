package catalog

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var errShape = errors.New("unexpected document shape")

// DecodeStore decodes a store profile. Missing optional fields stay empty.
func DecodeStore(data []byte) (*Store, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	if d := doc.Get("store"); d.IsObject() {
		doc = d
	}
	if !doc.IsObject() {
		return nil, fmt.Errorf("store: %w", errShape)
	}

	store := &Store{
		ID:          firstString(doc, "_id", "id"),
		Name:        firstString(doc, "name", "title"),
		Description: firstString(doc, "description"),
		Address:     firstString(doc, "address"),
		Phone:       firstString(doc, "phone", "phoneNumber"),
		Website:     firstString(doc, "website"),
		SocialLinks: socialLinks(doc),
	}
	return store, nil
}

// DecodeCategories decodes a category list.
func DecodeCategories(data []byte) ([]Category, error) {
	items, err := parseList(data, "categories")
	if err != nil {
		return nil, err
	}

	categories := make([]Category, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		categories = append(categories, Category{
			ID:   firstString(item, "_id", "id"),
			Name: firstString(item, "name", "title"),
		})
	}
	return categories, nil
}

// DecodeProducts decodes a product list. Entries that are not objects are
// skipped rather than failing the whole list.
func DecodeProducts(data []byte) ([]Product, error) {
	items, err := parseList(data, "products")
	if err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		products = append(products, decodeProduct(item))
	}
	return products, nil
}

func decodeProduct(item gjson.Result) Product {
	p := Product{
		ID:          firstString(item, "_id", "id"),
		Title:       firstString(item, "title", "name"),
		Price:       price(item.Get("price")),
		Description: firstString(item, "description"),
		ImageURL:    firstString(item, "image", "imageUrl"),
	}

	for _, key := range []string{"isAvailable", "available", "inStock"} {
		v := item.Get(key)
		if v.Type == gjson.True || v.Type == gjson.False {
			available := v.Bool()
			p.Available = &available
			break
		}
	}

	switch ref := item.Get("category"); {
	case ref.IsObject():
		p.CategoryID = firstString(ref, "_id", "id")
		p.CategoryName = firstString(ref, "name")
	case ref.Type == gjson.String:
		p.CategoryID = ref.Str
	default:
		p.CategoryID = firstString(item, "categoryId")
	}

	return p
}

// price renders a price as display text. Zero and missing prices render
// empty, so the caption omits them.
func price(v gjson.Result) string {
	switch v.Type {
	case gjson.Number:
		if v.Num == 0 {
			return ""
		}
		return v.String()
	case gjson.String:
		return v.Str
	default:
		return ""
	}
}

func socialLinks(doc gjson.Result) map[string]string {
	links := make(map[string]string)

	for _, key := range []string{"socialLinks", "social"} {
		v := doc.Get(key)
		switch {
		case v.IsObject():
			v.ForEach(func(name, url gjson.Result) bool {
				if url.Type == gjson.String && url.Str != "" {
					links[name.String()] = url.Str
				}
				return true
			})
		case v.IsArray():
			v.ForEach(func(_, entry gjson.Result) bool {
				name := firstString(entry, "platform", "name", "type")
				url := firstString(entry, "url", "link")
				if name != "" && url != "" {
					links[name] = url
				}
				return true
			})
		}
	}

	if len(links) == 0 {
		return nil
	}
	return links
}

// parseDocument validates data and unwraps a {"data": ...} envelope.
func parseDocument(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("invalid json: %w", errShape)
	}
	doc := gjson.ParseBytes(data)
	if doc.IsObject() {
		if d := doc.Get("data"); d.Exists() && (d.IsObject() || d.IsArray()) {
			doc = d
		}
	}
	return doc, nil
}

// parseList returns the elements of a top-level array, or of the array
// stored under key when upstream wraps the list in an object.
func parseList(data []byte, key string) ([]gjson.Result, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	if doc.IsObject() {
		doc = doc.Get(key)
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("%s: %w", key, errShape)
	}
	return doc.Array(), nil
}

// firstString returns the first non-empty string or number among keys as
// text. Empty strings, nulls, booleans, objects and arrays count as absent.
func firstString(doc gjson.Result, keys ...string) string {
	for _, key := range keys {
		v := doc.Get(key)
		switch v.Type {
		case gjson.String:
			if v.Str != "" {
				return v.Str
			}
		case gjson.Number:
			return v.Raw
		}
	}
	return ""
}
