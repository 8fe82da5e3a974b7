package types

import (
	"encoding/json"
	"math"
	"time"
)

// MaxProductImages is the maximum number of images attached to a product.
const MaxProductImages = 10

// Product represents a sellable item in the catalog.
type Product struct {
	// ID is the opaque unique identifier of the product.
	ID string `json:"id" db:"id" bson:"_id"`

	// Name is the human-readable name of the product.
	Name string `json:"name" db:"name" bson:"name"`

	// Description is the full product description.
	Description string `json:"description" db:"description" bson:"description"`

	// Price is the regular price.
	Price float64 `json:"price" db:"price" bson:"price"`

	// DiscountPrice is the reduced price, zero when the product is not discounted.
	// It never exceeds Price.
	DiscountPrice float64 `json:"discountPrice" db:"discount_price" bson:"discountPrice"`

	// CategoryID references the owning category.
	CategoryID string `json:"categoryId" db:"category_id" bson:"category"`

	// Category is the populated category projection. It is filled on reads
	// and never persisted.
	Category *CategorySummary `json:"category,omitempty" db:"-" bson:"-"`

	// Images are the product pictures hosted in the media store.
	Images []Image `json:"images" db:"images" bson:"images"`

	// Stock is the quantity available for sale.
	Stock int `json:"stock" db:"stock" bson:"stock"`

	// SKU is the unique, upper-case stock keeping unit.
	SKU string `json:"sku" db:"sku" bson:"sku"`

	// Tags are free-form labels used for search.
	Tags []string `json:"tags" db:"tags" bson:"tags"`

	// Specifications are free-form key/value attributes.
	Specifications map[string]string `json:"specifications" db:"specifications" bson:"specifications"`

	// IsActive hides the product from storefront listings when false.
	IsActive bool `json:"isActive" db:"is_active" bson:"isActive"`

	// Featured marks products promoted by the storefront.
	Featured bool `json:"featured" db:"featured" bson:"featured"`

	// Views counts product detail reads.
	Views int64 `json:"views" db:"views" bson:"views"`

	// Rating aggregates customer ratings.
	Rating Rating `json:"rating" db:"rating" bson:"rating"`

	// CreatedAt is the timestamp at which the product was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the product.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// Rating is the aggregated customer rating of a product.
type Rating struct {
	Average float64 `json:"average" db:"rating_average" bson:"average"`
	Count   int     `json:"count" db:"rating_count" bson:"count"`
}

// EffectivePrice is the price a customer pays, taking the discount into account.
func (p Product) EffectivePrice() float64 {
	if p.DiscountPrice > 0 {
		return p.DiscountPrice
	}
	return p.Price
}

// DiscountPercentage is the rounded discount relative to the regular price.
func (p Product) DiscountPercentage() int {
	if p.DiscountPrice <= 0 || p.Price <= 0 {
		return 0
	}
	return int(math.Round((p.Price - p.DiscountPrice) / p.Price * 100))
}

// ImageByID returns the index of the image with the given id, or -1.
func (p Product) ImageByID(id string) int {
	for i, img := range p.Images {
		if img.ID == id {
			return i
		}
	}
	return -1
}

// MarshalJSON adds the derived price fields to the JSON representation.
func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	out := struct {
		product
		EffectivePrice     float64 `json:"effectivePrice"`
		DiscountPercentage int     `json:"discountPercentage"`
	}{
		product:            product(p),
		EffectivePrice:     p.EffectivePrice(),
		DiscountPercentage: p.DiscountPercentage(),
	}
	if out.Images == nil {
		out.Images = []Image{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Specifications == nil {
		out.Specifications = map[string]string{}
	}
	return json.Marshal(out)
}
