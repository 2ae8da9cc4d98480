package service

import (
	"errors"
	"reflect"
	"strings"

	"storefront/internal/domain"

	"github.com/go-playground/validator/v10"
)

// productValidator checks product input and patches, reporting fields by their JSON names
var productValidator = newProductValidator()

func newProductValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails on an empty tag or nil func
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return domain.Category(fl.Field().String()).Valid()
	})

	return v
}

// validateProduct runs the struct rules and folds every failure into one ValidationError
func validateProduct(v interface{}) error {
	err := productValidator.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return domain.Internal(err)
	}

	fields := make([]domain.FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, domain.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}

	return domain.NewValidationError(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "min":
		return "must not be empty"
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be less than or equal to " + fe.Param()
	case "category":
		names := make([]string, 0, len(domain.Categories))
		for _, c := range domain.Categories {
			names = append(names, string(c))
		}
		return "must be one of " + strings.Join(names, ", ")
	default:
		return "is invalid"
	}
}
