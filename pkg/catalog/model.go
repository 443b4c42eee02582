// Package catalog holds the store catalog model, decodes it from the public
// API, and derives the product lists shown to users.
package catalog

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when the store profile or the product list
// could not be fetched. Categories are best-effort and never cause it.
var ErrUnavailable = errors.New("catalog unavailable")

// Store is the store profile.
type Store struct {
	ID          string
	Name        string
	Description string
	Address     string
	Phone       string
	Website     string
	// SocialLinks maps a network name to a URL.
	SocialLinks map[string]string
}

// Category is a product category. Users pick categories by Name.
type Category struct {
	ID   string
	Name string
}

// Product is one menu item.
type Product struct {
	ID    string
	Title string
	// Price is a display string, empty when the item has no price.
	Price       string
	Description string
	// Available is nil when upstream does not report availability.
	Available *bool
	ImageURL  string
	// CategoryID is empty for uncategorized products.
	CategoryID string
	// CategoryName is the name embedded in the product's category
	// reference, if upstream populated it.
	CategoryName string
}

// Snapshot is one fetch of the catalog triple.
//
// A nil Store or nil Products means that resource was unavailable. A nil
// Categories slice means categories could not be fetched; an empty non-nil
// slice means the store has none.
type Snapshot struct {
	Store      *Store
	Categories []Category
	Products   []Product
	FetchedAt  time.Time
}

// Complete reports whether the snapshot can be served and cached.
func (s Snapshot) Complete() bool {
	return s.Store != nil && s.Products != nil
}

// HasCategories reports whether category navigation is possible.
func (s Snapshot) HasCategories() bool {
	return len(s.Categories) > 0
}
