package types

import "time"

// Image references an asset stored in the media store.
type Image struct {
	// ID identifies the image within its owner (used to delete a single image).
	ID string `json:"id" bson:"id"`

	// URL is the public address of the asset.
	URL string `json:"url" bson:"url"`

	// PublicID is the object key of the asset in the media store.
	PublicID string `json:"publicId" bson:"publicId"`
}

// Category groups products in the catalog.
type Category struct {
	// ID is the opaque unique identifier of the category.
	ID string `json:"id" db:"id" bson:"_id"`

	// Name is the unique, human-readable category name.
	Name string `json:"name" db:"name" bson:"name"`

	// Description is an optional free-form description.
	Description string `json:"description,omitempty" db:"description" bson:"description,omitempty"`

	// Image is the optional category banner.
	Image *Image `json:"image,omitempty" db:"image" bson:"image,omitempty"`

	// IsActive hides the category from storefront listings when false.
	IsActive bool `json:"isActive" db:"is_active" bson:"isActive"`

	// CreatedAt is the timestamp at which the category was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the category.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// Summary returns the projection of the category embedded in products.
func (c Category) Summary() *CategorySummary {
	return &CategorySummary{ID: c.ID, Name: c.Name, Description: c.Description}
}

// CategorySummary is the category projection populated on product reads.
type CategorySummary struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}
