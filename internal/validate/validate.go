// Package validate checks request payloads and converts rule violations into
// field level validation errors.
package validate

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/types"
)

// MessageValidation is the envelope message of every validation failure.
const MessageValidation = "Validation errors"

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	lowerPattern    = regexp.MustCompile(`[a-z]`)
	upperPattern    = regexp.MustCompile(`[A-Z]`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
)

func usernameRules() []validation.Rule {
	return []validation.Rule{
		validation.Length(3, 20).Error("Username must be between 3 and 20 characters"),
		validation.Match(usernamePattern).Error("Username can only contain letters, numbers, and underscores"),
	}
}

// Register validates a registration payload. Email is expected to be normalized.
func Register(in types.RegisterInput) error {
	return check(validation.ValidateStruct(&in,
		validation.Field(&in.Username, append([]validation.Rule{
			validation.Required.Error("Username must be between 3 and 20 characters"),
		}, usernameRules()...)...),
		validation.Field(&in.Email,
			validation.Required.Error("Please provide a valid email"),
			is.Email.Error("Please provide a valid email"),
		),
		validation.Field(&in.Password,
			validation.Required.Error("Password must be at least 6 characters long"),
			validation.Length(6, 0).Error("Password must be at least 6 characters long"),
			validation.By(passwordStrength),
		),
		validation.Field(&in.Role,
			validation.In(types.RoleAdmin, types.RoleUser).Error("Role must be either admin or user"),
		),
	))
}

// Login validates a login payload.
func Login(in types.LoginInput) error {
	return check(validation.ValidateStruct(&in,
		validation.Field(&in.Email,
			validation.Required.Error("Please provide a valid email"),
			is.Email.Error("Please provide a valid email"),
		),
		validation.Field(&in.Password, validation.Required.Error("Password is required")),
	))
}

// ProfileUpdate re-checks the profile fields present in the update.
func ProfileUpdate(in types.ProfileUpdate) error {
	return check(validation.ValidateStruct(&in,
		validation.Field(&in.Username, append([]validation.Rule{
			validation.By(notBlank("Username must be between 3 and 20 characters")),
		}, usernameRules()...)...),
		validation.Field(&in.Avatar, is.URL.Error("Avatar must be a valid URL")),
	))
}

// Category validates a category payload. Name is required on create.
func Category(in types.CategoryInput, create bool) error {
	nameRules := []validation.Rule{
		validation.Length(0, 100).Error("Category name cannot exceed 100 characters"),
	}
	if create {
		nameRules = append([]validation.Rule{validation.Required.Error("Category name is required")}, nameRules...)
	} else {
		nameRules = append([]validation.Rule{validation.By(notBlank("Category name is required"))}, nameRules...)
	}
	return check(validation.ValidateStruct(&in,
		validation.Field(&in.Name, nameRules...),
		validation.Field(&in.Description,
			validation.Length(0, 500).Error("Description cannot exceed 500 characters"),
		),
	))
}

// Product validates a product payload. On create the core fields are required.
func Product(in types.ProductInput, create bool) error {
	var (
		nameRules  []validation.Rule
		descRules  []validation.Rule
		priceRules []validation.Rule
		catRules   []validation.Rule
		stockRules []validation.Rule
	)
	if create {
		nameRules = append(nameRules, validation.Required.Error("Product name is required"))
		descRules = append(descRules, validation.Required.Error("Product description is required"))
		priceRules = append(priceRules, validation.By(present("Price must be a positive number")))
		catRules = append(catRules, validation.Required.Error("Valid category ID is required"))
		stockRules = append(stockRules, validation.By(present("Stock must be a non-negative integer")))
	} else {
		nameRules = append(nameRules, validation.By(notBlank("Product name is required")))
		descRules = append(descRules, validation.By(notBlank("Product description is required")))
		catRules = append(catRules, validation.By(notBlank("Valid category ID is required")))
	}
	nameRules = append(nameRules, validation.Length(0, 200).Error("Product name cannot exceed 200 characters"))
	priceRules = append(priceRules, validation.Min(0.0).Error("Price must be a positive number"))
	catRules = append(catRules, is.UUID.Error("Valid category ID is required"))
	stockRules = append(stockRules, validation.Min(0).Error("Stock must be a non-negative integer"))

	return check(validation.ValidateStruct(&in,
		validation.Field(&in.Name, nameRules...),
		validation.Field(&in.Description, descRules...),
		validation.Field(&in.Price, priceRules...),
		validation.Field(&in.DiscountPrice,
			validation.Min(0.0).Error("Discount price must be a positive number"),
			validation.By(discountWithin(in.Price)),
		),
		validation.Field(&in.CategoryID, catRules...),
		validation.Field(&in.Stock, stockRules...),
		validation.Field(&in.SKU, validation.Length(0, 50).Error("SKU cannot exceed 50 characters")),
		validation.Field(&in.Tags,
			validation.Length(0, 10).Error("Maximum 10 tags allowed"),
			validation.By(tagLengths),
		),
	))
}

// Prices checks the discount against the price of a merged product.
func Prices(price, discount float64) error {
	if discount > price {
		return apperr.Validation(MessageValidation, []apperr.FieldError{{
			Field:   "discountPrice",
			Message: "Discount price cannot be greater than regular price",
		}})
	}
	return nil
}

// ID checks that a path identifier is well formed.
func ID(value string) error {
	if err := validation.Validate(value, validation.Required, is.UUID); err != nil {
		return apperr.New(apperr.KindBadRequest, "Invalid ID format")
	}
	return nil
}

func passwordStrength(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if !lowerPattern.MatchString(s) || !upperPattern.MatchString(s) || !digitPattern.MatchString(s) {
		return errors.New("Password must contain at least one lowercase letter, one uppercase letter, and one number")
	}
	return nil
}

func discountWithin(price *float64) validation.RuleFunc {
	return func(value interface{}) error {
		discount, _ := value.(*float64)
		if discount == nil || price == nil {
			return nil
		}
		if *discount > *price {
			return errors.New("Discount price cannot be greater than regular price")
		}
		return nil
	}
}

func tagLengths(value interface{}) error {
	tags, _ := value.([]string)
	for _, tag := range tags {
		if len(tag) > 50 {
			return errors.New("Each tag cannot exceed 50 characters")
		}
	}
	return nil
}

// present rejects nil pointers, allowing zero values.
func present(message string) validation.RuleFunc {
	return func(value interface{}) error {
		switch v := value.(type) {
		case *float64:
			if v == nil {
				return errors.New(message)
			}
		case *int:
			if v == nil {
				return errors.New(message)
			}
		}
		return nil
	}
}

// notBlank rejects pointers to blank strings, allowing nil.
func notBlank(message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(*string)
		if s != nil && strings.TrimSpace(*s) == "" {
			return errors.New(message)
		}
		return nil
	}
}

// check converts ozzo errors into an apperr validation error.
func check(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return apperr.Wrap(err, apperr.KindInternal, "validation failed")
	}
	fields := make([]string, 0, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	details := make([]apperr.FieldError, 0, len(fields))
	for _, field := range fields {
		details = append(details, apperr.FieldError{Field: field, Message: errs[field].Error()})
	}
	return apperr.Validation(MessageValidation, details)
}
