package models

import "strings"

// Category groups products in the storefront catalog.
type Category struct {
	BaseModel
	Name string `gorm:"uniqueIndex" json:"name"`
	Slug string `gorm:"uniqueIndex" json:"slug"`
	Icon string `json:"icon"`
}

// Slugify converts a category name into a URL-safe slug.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}
