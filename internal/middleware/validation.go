package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"storefront/internal/domain"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds every decoded request body
const maxBodyBytes = 1 << 20

// ErrEmptyBody is returned by DecodeJSON when the request has no body
var ErrEmptyBody = domain.NewError(domain.KindInvalidFormat, "request body is required")

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// DecodeJSON decodes the request body into v. Malformed JSON is an InvalidFormat error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return ErrEmptyBody
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return domain.NewError(domain.KindInvalidFormat, "malformed request body: %v", err)
	}
	return nil
}

// DecodeAndValidate decodes JSON request body and checks its shape against validate tags
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := DecodeJSON(w, r, v); err != nil {
		return err
	}

	if err := validate.Struct(v); err != nil {
		fields := FormatValidationErrors(err)
		return &domain.Error{
			Kind:    domain.KindInvalidFormat,
			Message: "request body has an invalid shape",
			Fields:  fields,
		}
	}
	return nil
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []domain.FieldError {
	var fields []domain.FieldError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			// Drop the top-level struct name from the namespace
			field := e.Namespace()
			if _, rest, ok := strings.Cut(field, "."); ok {
				field = rest
			}
			fields = append(fields, domain.FieldError{
				Field:   field,
				Message: getErrorMessage(e),
			})
		}
	}

	return fields
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	default:
		return "Invalid value"
	}
}
