package models

import "github.com/google/uuid"

// Product is a catalog item available for purchase.
type Product struct {
	BaseModel
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	OldPrice    *int64    `json:"old_price"`
	ImageURL    string    `gorm:"default:/placeholder.svg" json:"image_url"`
	CategoryID  uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	Category    *Category `json:"category,omitempty"`
	Stock       int       `json:"stock"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	IsNew       bool      `gorm:"column:is_new" json:"is_new"`
	Discount    int       `json:"discount"`
}
