package types

// Pagination describes the position of a page within a list.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
	Limit       int   `json:"limit"`
}

// NewPagination computes the pagination block of a page.
func NewPagination(page, limit int, total int64) Pagination {
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
		Limit:       limit,
	}
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Items      []Product  `json:"items"`
	Pagination Pagination `json:"pagination"`
}
