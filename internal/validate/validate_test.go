package validate

import (
	"net/url"
	"testing"

	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected apperr.Error, got %v", err)
	require.Equal(t, apperr.KindValidation, appErr.Kind)
	fields := map[string]string{}
	for _, d := range appErr.Details {
		fields[d.Field] = d.Message
	}
	return fields
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestRegister(t *testing.T) {
	valid := types.RegisterInput{Username: "alice01", Email: "a@x.com", Password: "Passw0rd"}
	require.NoError(t, Register(valid))

	withRole := valid
	withRole.Role = types.RoleAdmin
	require.NoError(t, Register(withRole))

	tests := []struct {
		name   string
		mutate func(*types.RegisterInput)
		field  string
	}{
		{"short username", func(in *types.RegisterInput) { in.Username = "al" }, "username"},
		{"long username", func(in *types.RegisterInput) { in.Username = "abcdefghijklmnopqrstu" }, "username"},
		{"username symbols", func(in *types.RegisterInput) { in.Username = "alice-01" }, "username"},
		{"bad email", func(in *types.RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *types.RegisterInput) { in.Password = "Pa0" }, "password"},
		{"weak password", func(in *types.RegisterInput) { in.Password = "password1" }, "password"},
		{"unknown role", func(in *types.RegisterInput) { in.Role = types.Role("root") }, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			fields := fieldsOf(t, Register(in))
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestRegisterReportsEveryField(t *testing.T) {
	fields := fieldsOf(t, Register(types.RegisterInput{}))
	assert.Equal(t, "Username must be between 3 and 20 characters", fields["username"])
	assert.Equal(t, "Please provide a valid email", fields["email"])
	assert.Equal(t, "Password must be at least 6 characters long", fields["password"])
	assert.NotContains(t, fields, "role")
}

func TestLogin(t *testing.T) {
	require.NoError(t, Login(types.LoginInput{Email: "a@x.com", Password: "x"}))

	fields := fieldsOf(t, Login(types.LoginInput{Email: "nope"}))
	assert.Equal(t, "Please provide a valid email", fields["email"])
	assert.Equal(t, "Password is required", fields["password"])
}

func TestProfileUpdate(t *testing.T) {
	require.NoError(t, ProfileUpdate(types.ProfileUpdate{}))
	require.NoError(t, ProfileUpdate(types.ProfileUpdate{
		Username: strPtr("bob_2"),
		Avatar:   strPtr("https://cdn.example.com/a.png"),
	}))

	fields := fieldsOf(t, ProfileUpdate(types.ProfileUpdate{
		Username: strPtr("b!"),
		Avatar:   strPtr("not a url"),
	}))
	assert.Contains(t, fields, "username")
	assert.Equal(t, "Avatar must be a valid URL", fields["avatar"])

	fields = fieldsOf(t, ProfileUpdate(types.ProfileUpdate{Username: strPtr("")}))
	assert.Equal(t, "Username must be between 3 and 20 characters", fields["username"])
}

func TestCategory(t *testing.T) {
	require.NoError(t, Category(types.CategoryInput{Name: strPtr("Shoes")}, true))
	require.NoError(t, Category(types.CategoryInput{}, false))

	fields := fieldsOf(t, Category(types.CategoryInput{}, true))
	assert.Equal(t, "Category name is required", fields["name"])

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	fields = fieldsOf(t, Category(types.CategoryInput{Name: strPtr(""), Description: strPtr(string(long))}, false))
	assert.Equal(t, "Category name is required", fields["name"])
	assert.Equal(t, "Description cannot exceed 500 characters", fields["description"])
}

func TestProduct(t *testing.T) {
	valid := types.ProductInput{
		Name:        strPtr("Runner"),
		Description: strPtr("Lightweight shoe"),
		Price:       floatPtr(100),
		CategoryID:  strPtr("3f2c1f8e-7a4b-4d5e-9c1a-2b3c4d5e6f70"),
		Stock:       intPtr(0),
	}
	require.NoError(t, Product(valid, true))
	require.NoError(t, Product(types.ProductInput{}, false))

	free := valid
	free.Price = floatPtr(0)
	require.NoError(t, Product(free, true))

	fields := fieldsOf(t, Product(types.ProductInput{}, true))
	assert.Equal(t, "Product name is required", fields["name"])
	assert.Equal(t, "Price must be a positive number", fields["price"])
	assert.Equal(t, "Valid category ID is required", fields["category"])
	assert.Equal(t, "Stock must be a non-negative integer", fields["stock"])

	bad := valid
	bad.DiscountPrice = floatPtr(150)
	bad.Stock = intPtr(-1)
	bad.Tags = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
	fields = fieldsOf(t, Product(bad, true))
	assert.Equal(t, "Discount price cannot be greater than regular price", fields["discountPrice"])
	assert.Equal(t, "Stock must be a non-negative integer", fields["stock"])
	assert.Equal(t, "Maximum 10 tags allowed", fields["tags"])
}

func TestPrices(t *testing.T) {
	require.NoError(t, Prices(10, 5))
	require.NoError(t, Prices(10, 10))
	assert.Contains(t, fieldsOf(t, Prices(10, 11)), "discountPrice")
}

func TestID(t *testing.T) {
	require.NoError(t, ID("3f2c1f8e-7a4b-4d5e-9c1a-2b3c4d5e6f70"))
	err := ID("123")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestProductQueryDefaults(t *testing.T) {
	q, err := ProductQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, "createdAt", q.SortBy)
	assert.Equal(t, types.SortDesc, q.SortOrder)
	require.NotNil(t, q.IsActive)
	assert.True(t, *q.IsActive)
	assert.Nil(t, q.Featured)
	assert.Equal(t, 0, q.Offset())
}

func TestProductQueryParses(t *testing.T) {
	q, err := ProductQuery(url.Values{
		"page":      {"3"},
		"limit":     {"20"},
		"sortBy":    {"price"},
		"sortOrder": {"asc"},
		"minPrice":  {"5"},
		"maxPrice":  {"50.5"},
		"featured":  {"true"},
		"isActive":  {"false"},
		"search":    {" shoe "},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 20, q.Limit)
	assert.Equal(t, 40, q.Offset())
	assert.Equal(t, "price", q.SortBy)
	assert.Equal(t, 5.0, *q.MinPrice)
	assert.Equal(t, 50.5, *q.MaxPrice)
	assert.True(t, *q.Featured)
	assert.False(t, *q.IsActive)
	assert.Equal(t, "shoe", q.Search)
}

func TestProductQueryRejects(t *testing.T) {
	fields := fieldsOf(t, func() error {
		_, err := ProductQuery(url.Values{
			"page":      {"0"},
			"limit":     {"101"},
			"sortBy":    {"password"},
			"sortOrder": {"up"},
			"minPrice":  {"-1"},
			"featured":  {"yes"},
		})
		return err
	}())
	assert.Equal(t, "Page must be a positive integer", fields["page"])
	assert.Equal(t, "Limit must be between 1 and 100", fields["limit"])
	assert.Equal(t, "Invalid sort field", fields["sortBy"])
	assert.Equal(t, "Sort order must be asc or desc", fields["sortOrder"])
	assert.Equal(t, "Minimum price must be a positive number", fields["minPrice"])
	assert.Equal(t, "Featured must be a boolean value", fields["featured"])
}

func TestProductForm(t *testing.T) {
	in, err := ProductForm(url.Values{
		"name":           {"Runner"},
		"description":    {"Lightweight shoe"},
		"price":          {"100"},
		"discountPrice":  {"80"},
		"category":       {"3f2c1f8e-7a4b-4d5e-9c1a-2b3c4d5e6f70"},
		"stock":          {"7"},
		"tags":           {"running, shoes ,, sale"},
		"specifications": {`{"color":"red","size":42}`},
		"featured":       {"true"},
		"sku":            {""},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "Runner", *in.Name)
	assert.Equal(t, 80.0, *in.DiscountPrice)
	assert.Equal(t, 7, *in.Stock)
	assert.Equal(t, []string{"running", "shoes", "sale"}, in.Tags)
	assert.Equal(t, map[string]string{"color": "red", "size": "42"}, in.Specifications)
	assert.True(t, *in.Featured)
	assert.Nil(t, in.SKU)
	assert.Nil(t, in.IsActive)
}

func TestProductFormPartialUpdate(t *testing.T) {
	in, err := ProductForm(url.Values{"stock": {"3"}}, false)
	require.NoError(t, err)
	assert.Nil(t, in.Name)
	assert.Nil(t, in.Price)
	assert.Nil(t, in.Tags)
	assert.Equal(t, 3, *in.Stock)
}

func TestProductFormRejectsSpecifications(t *testing.T) {
	_, err := ProductForm(url.Values{"specifications": {"{not json"}}, false)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	appErr, _ := apperr.As(err)
	assert.Equal(t, "Invalid specifications format", appErr.Message)
}

func TestProductFormRejectsNumbers(t *testing.T) {
	_, err := ProductForm(url.Values{"price": {"cheap"}, "stock": {"many"}}, false)
	fields := fieldsOf(t, err)
	assert.Equal(t, "Price must be a positive number", fields["price"])
	assert.Equal(t, "Stock must be a non-negative integer", fields["stock"])
}

func TestProductFormRejectsOutOfRangeNumbers(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		field   string
		message string
	}{
		{name: "price overflows float64", values: url.Values{"price": {"1e400"}}, field: "price", message: "Price must be a positive number"},
		{name: "price is NaN", values: url.Values{"price": {"NaN"}}, field: "price", message: "Price must be a positive number"},
		{name: "discount is infinite", values: url.Values{"discountPrice": {"Inf"}}, field: "discountPrice", message: "Discount price must be a positive number"},
		{name: "stock overflows int", values: url.Values{"stock": {"99999999999999999999"}}, field: "stock", message: "Stock must be a non-negative integer"},
		{name: "stock exceeds column", values: url.Values{"stock": {"3000000000"}}, field: "stock", message: "Stock must be a non-negative integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ProductForm(tt.values, false)
			fields := fieldsOf(t, err)
			assert.Equal(t, tt.message, fields[tt.field])
			assert.Nil(t, in.Price)
			assert.Nil(t, in.Stock)
		})
	}
}

func TestProductFormAcceptsStockLimit(t *testing.T) {
	in, err := ProductForm(url.Values{"stock": {"2147483647"}, "price": {"12.5"}}, false)
	require.NoError(t, err)
	assert.Equal(t, MaxStock, *in.Stock)
	assert.Equal(t, 12.5, *in.Price)
}

func TestProductQueryRejectsNonFinitePrice(t *testing.T) {
	_, err := ProductQuery(url.Values{"minPrice": {"NaN"}, "maxPrice": {"1e400"}})
	fields := fieldsOf(t, err)
	assert.Equal(t, "Minimum price must be a positive number", fields["minPrice"])
	assert.Equal(t, "Maximum price must be a positive number", fields["maxPrice"])
}

func TestCategoryQuery(t *testing.T) {
	q, err := CategoryQuery(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, q.IsActive)

	q, err = CategoryQuery(url.Values{"isActive": {"false"}})
	require.NoError(t, err)
	assert.False(t, *q.IsActive)

	_, err = CategoryQuery(url.Values{"isActive": {"maybe"}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
