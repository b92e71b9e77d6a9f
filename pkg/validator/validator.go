package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/slug"
)

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so errors match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slug.IsValid(fl.Field().String())
	})
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if len(code) != 3 {
			return false
		}
		for _, r := range code {
			if r < 'A' || r > 'Z' {
				return false
			}
		}
		return true
	})
	return v
}

// Validate checks s against its validate tags. Failures are returned as an
// *apperrors.ValidationErrorCollection keyed by JSON field name.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var coll apperrors.ValidationErrorCollection
	for _, fe := range fieldErrs {
		coll.Add(fieldName(fe), fe.Value(), msgForTag(fe))
	}
	return coll.Err()
}

// fieldName is the JSON path of the failing field without the root type,
// e.g. "items[0].sku".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is not set", fe.Param())
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "slug":
		return "must be a lowercase URL slug"
	case "currency":
		return "must be an ISO 4217 currency code"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// DecodeAndValidate reads a JSON body into dst and validates it. Malformed
// JSON is reported as invalid input.
func DecodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is required")
		}
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return Validate(dst)
}
