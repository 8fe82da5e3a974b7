package types

// RegisterInput is the payload of an account registration.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// LoginInput is the payload of a login attempt.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the optional profile fields. Nil means absent.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// Empty reports whether no field would be applied.
func (p ProfileUpdate) Empty() bool {
	return (p.Username == nil || *p.Username == "") && (p.Avatar == nil || *p.Avatar == "")
}

// CategoryInput carries category fields for create and update. Nil means absent.
type CategoryInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// ProductInput carries product fields for create and update. Nil means absent.
type ProductInput struct {
	Name           *string           `json:"name,omitempty"`
	Description    *string           `json:"description,omitempty"`
	Price          *float64          `json:"price,omitempty"`
	DiscountPrice  *float64          `json:"discountPrice,omitempty"`
	CategoryID     *string           `json:"category,omitempty"`
	Stock          *int              `json:"stock,omitempty"`
	SKU            *string           `json:"sku,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Featured       *bool             `json:"featured,omitempty"`
	IsActive       *bool             `json:"isActive,omitempty"`
}

// Sort orders.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ProductSortFields lists the fields products may be sorted by.
var ProductSortFields = []string{"name", "price", "createdAt", "rating.average", "views"}

// ProductQuery holds the product list filters. Nil means unfiltered.
type ProductQuery struct {
	Page      int      `json:"page"`
	Limit     int      `json:"limit"`
	Category  string   `json:"category"`
	Search    string   `json:"search"`
	SortBy    string   `json:"sortBy"`
	SortOrder string   `json:"sortOrder"`
	MinPrice  *float64 `json:"minPrice"`
	MaxPrice  *float64 `json:"maxPrice"`
	Featured  *bool    `json:"featured"`
	IsActive  *bool    `json:"isActive"`
}

// Offset is the number of items skipped before the current page.
func (q ProductQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// CategoryQuery holds the category list filter.
type CategoryQuery struct {
	IsActive *bool `json:"isActive"`
}
