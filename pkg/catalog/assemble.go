package catalog

// Uncategorized is the group name for products without a resolvable category.
const Uncategorized = "Uncategorized"

// Group is a named bucket of products.
type Group struct {
	Name     string
	Products []Product
}

// SelectCategory returns the products of the category called name.
//
// Categories are matched by display name, not id, so a renamed category no
// longer matches. Whenever nothing matches (unknown name, categories
// unavailable, or an empty category) the full product list is returned:
// the user always sees something.
func SelectCategory(products []Product, categories []Category, name string) []Product {
	var categoryID string
	found := false
	for _, c := range categories {
		if c.Name == name {
			categoryID = c.ID
			found = true
			break
		}
	}
	if !found {
		return products
	}

	selected := make([]Product, 0, len(products))
	for _, p := range products {
		if p.CategoryID != "" && p.CategoryID == categoryID {
			selected = append(selected, p)
		}
	}
	if len(selected) == 0 {
		return products
	}
	return selected
}

// GroupByCategory buckets products by category name. Groups appear in the
// order their first product appears; products keep their source order.
func GroupByCategory(products []Product, categories []Category) []Group {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	var groups []Group
	index := make(map[string]int)
	for _, p := range products {
		name := categoryName(p, names)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Products = append(groups[i].Products, p)
	}
	return groups
}

func categoryName(p Product, names map[string]string) string {
	if p.CategoryID == "" {
		return Uncategorized
	}
	if name := names[p.CategoryID]; name != "" {
		return name
	}
	if p.CategoryName != "" {
		return p.CategoryName
	}
	return Uncategorized
}
