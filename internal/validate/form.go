package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/types"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxStock is the largest stock count every store can hold.
	MaxStock = math.MaxInt32
)

func boolRule(message string) validation.Rule {
	return validation.In("true", "false").Error(message)
}

type productQueryParams struct {
	Page      string `json:"page"`
	Limit     string `json:"limit"`
	MinPrice  string `json:"minPrice"`
	MaxPrice  string `json:"maxPrice"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
	Featured  string `json:"featured"`
	IsActive  string `json:"isActive"`
}

// ProductQuery parses and validates the product list query string.
// Products default to active ones sorted by newest first.
func ProductQuery(values url.Values) (types.ProductQuery, error) {
	p := productQueryParams{
		Page:      strings.TrimSpace(values.Get("page")),
		Limit:     strings.TrimSpace(values.Get("limit")),
		MinPrice:  strings.TrimSpace(values.Get("minPrice")),
		MaxPrice:  strings.TrimSpace(values.Get("maxPrice")),
		SortBy:    strings.TrimSpace(values.Get("sortBy")),
		SortOrder: strings.TrimSpace(values.Get("sortOrder")),
		Featured:  strings.TrimSpace(values.Get("featured")),
		IsActive:  strings.TrimSpace(values.Get("isActive")),
	}

	sortFields := make([]interface{}, 0, len(types.ProductSortFields))
	for _, f := range types.ProductSortFields {
		sortFields = append(sortFields, f)
	}

	err := check(validation.ValidateStruct(&p,
		validation.Field(&p.Page, validation.By(intRange(1, 0, "Page must be a positive integer"))),
		validation.Field(&p.Limit, validation.By(intRange(1, MaxLimit, fmt.Sprintf("Limit must be between 1 and %d", MaxLimit)))),
		validation.Field(&p.MinPrice, validation.By(floatMin(0, "Minimum price must be a positive number"))),
		validation.Field(&p.MaxPrice, validation.By(floatMin(0, "Maximum price must be a positive number"))),
		validation.Field(&p.SortBy, validation.In(sortFields...).Error("Invalid sort field")),
		validation.Field(&p.SortOrder, validation.In(types.SortAsc, types.SortDesc).Error("Sort order must be asc or desc")),
		validation.Field(&p.Featured, boolRule("Featured must be a boolean value")),
		validation.Field(&p.IsActive, boolRule("IsActive must be a boolean value")),
	))
	if err != nil {
		return types.ProductQuery{}, err
	}

	q := types.ProductQuery{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		Category:  strings.TrimSpace(values.Get("category")),
		Search:    strings.TrimSpace(values.Get("search")),
		SortBy:    "createdAt",
		SortOrder: types.SortDesc,
		MinPrice:  parseFloatPtr(p.MinPrice),
		MaxPrice:  parseFloatPtr(p.MaxPrice),
		Featured:  parseBoolPtr(p.Featured),
		IsActive:  parseBoolPtr(p.IsActive),
	}
	if p.Page != "" {
		q.Page, _ = strconv.Atoi(p.Page)
	}
	if p.Limit != "" {
		q.Limit, _ = strconv.Atoi(p.Limit)
	}
	if p.SortBy != "" {
		q.SortBy = p.SortBy
	}
	if p.SortOrder != "" {
		q.SortOrder = p.SortOrder
	}
	if q.IsActive == nil {
		active := true
		q.IsActive = &active
	}
	if q.Category != "" {
		if err := ID(q.Category); err != nil {
			return types.ProductQuery{}, apperr.Validation(MessageValidation, []apperr.FieldError{{
				Field:   "category",
				Message: "Valid category ID is required",
			}})
		}
	}
	return q, nil
}

// CategoryQuery parses the category list query string.
func CategoryQuery(values url.Values) (types.CategoryQuery, error) {
	raw := strings.TrimSpace(values.Get("isActive"))
	if err := validation.Validate(raw, boolRule("IsActive must be a boolean value")); err != nil {
		return types.CategoryQuery{}, apperr.Validation(MessageValidation, []apperr.FieldError{{
			Field:   "isActive",
			Message: "IsActive must be a boolean value",
		}})
	}
	return types.CategoryQuery{IsActive: parseBoolPtr(raw)}, nil
}

type productFormParams struct {
	Price         string `json:"price"`
	DiscountPrice string `json:"discountPrice"`
	Stock         string `json:"stock"`
	Featured      string `json:"featured"`
	IsActive      string `json:"isActive"`
}

// ProductForm converts form values into a product input and validates it.
// Absent keys stay nil so the result can be applied as a partial update.
func ProductForm(values url.Values, create bool) (types.ProductInput, error) {
	p := productFormParams{
		Price:         strings.TrimSpace(values.Get("price")),
		DiscountPrice: strings.TrimSpace(values.Get("discountPrice")),
		Stock:         strings.TrimSpace(values.Get("stock")),
		Featured:      strings.TrimSpace(values.Get("featured")),
		IsActive:      strings.TrimSpace(values.Get("isActive")),
	}
	var (
		price, discount *float64
		stock           *int
	)
	err := check(validation.ValidateStruct(&p,
		validation.Field(&p.Price, validation.By(parseFloatInto(&price, "Price must be a positive number"))),
		validation.Field(&p.DiscountPrice, validation.By(parseFloatInto(&discount, "Discount price must be a positive number"))),
		validation.Field(&p.Stock, validation.By(parseIntInto(&stock, MaxStock, "Stock must be a non-negative integer"))),
		validation.Field(&p.Featured, boolRule("Featured must be a boolean value")),
		validation.Field(&p.IsActive, boolRule("IsActive must be a boolean value")),
	))
	if err != nil {
		return types.ProductInput{}, err
	}

	var in types.ProductInput
	in.Name = formString(values, "name")
	in.Description = formString(values, "description")
	in.CategoryID = formString(values, "category")
	if in.SKU = formString(values, "sku"); in.SKU != nil && *in.SKU == "" && create {
		in.SKU = nil
	}
	if _, ok := values["price"]; ok {
		in.Price = price
	}
	if _, ok := values["discountPrice"]; ok {
		in.DiscountPrice = discount
		if in.DiscountPrice == nil {
			zero := 0.0
			in.DiscountPrice = &zero
		}
	}
	if _, ok := values["stock"]; ok {
		in.Stock = stock
	}
	in.Featured = parseBoolPtr(p.Featured)
	in.IsActive = parseBoolPtr(p.IsActive)
	if _, ok := values["tags"]; ok {
		in.Tags = SplitTags(values.Get("tags"))
	}
	if _, ok := values["specifications"]; ok {
		specs, err := ParseSpecifications(values.Get("specifications"))
		if err != nil {
			return types.ProductInput{}, err
		}
		in.Specifications = specs
	}

	if err := Product(in, create); err != nil {
		return types.ProductInput{}, err
	}
	return in, nil
}

// CategoryForm converts form values into a category input and validates it.
func CategoryForm(values url.Values, create bool) (types.CategoryInput, error) {
	raw := strings.TrimSpace(values.Get("isActive"))
	if err := validation.Validate(raw, boolRule("IsActive must be a boolean value")); err != nil {
		return types.CategoryInput{}, apperr.Validation(MessageValidation, []apperr.FieldError{{
			Field:   "isActive",
			Message: "IsActive must be a boolean value",
		}})
	}
	in := types.CategoryInput{
		Name:        formString(values, "name"),
		Description: formString(values, "description"),
		IsActive:    parseBoolPtr(raw),
	}
	if err := Category(in, create); err != nil {
		return types.CategoryInput{}, err
	}
	return in, nil
}

// SplitTags splits a comma separated tag list, dropping empty entries.
func SplitTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ParseSpecifications decodes a JSON object of product specifications.
// Non string values are kept in their JSON form.
func ParseSpecifications(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}, nil
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, apperr.Wrap(err, apperr.KindBadRequest, "Invalid specifications format")
	}
	specs := make(map[string]string, len(decoded))
	for key, value := range decoded {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			specs[key] = s
			continue
		}
		specs[key] = string(value)
	}
	return specs, nil
}

func formString(values url.Values, key string) *string {
	if _, ok := values[key]; !ok {
		return nil
	}
	s := strings.TrimSpace(values.Get(key))
	return &s
}

func parseFloatPtr(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseBoolPtr(raw string) *bool {
	if raw == "" {
		return nil
	}
	v := raw == "true"
	return &v
}

func intRange(min, max int, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < min || (max > 0 && n > max) {
			return fmt.Errorf("%s", message)
		}
		return nil
	}
}

func floatMin(min float64, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) || f < min {
			return fmt.Errorf("%s", message)
		}
		return nil
	}
}

// parseFloatInto accepts an empty string or a finite float and stores the
// parsed value in target.
func parseFloatInto(target **float64, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return errors.New(message)
		}
		*target = &f
		return nil
	}
}

// parseIntInto accepts an empty string or an integer no larger than max and
// stores the parsed value in target.
func parseIntInto(target **int, max int, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n > max {
			return errors.New(message)
		}
		*target = &n
		return nil
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
