package http

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/service"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// newValidator returns a validator that reports fields by their JSON names
// and knows the "phone" and "language" rules.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		return domain.IsSupportedLanguage(fl.Field().String())
	})

	return v
}

// validate runs v over req and converts failures into a
// *service.ValidationError keyed by JSON field path.
func validate(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return &service.ValidationError{Fields: fields}
}

// fieldPath drops the top-level struct name from the namespace, so
// "RegisterRequest.farmerProfile.herdSize" becomes "farmerProfile.herdSize".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "phone":
		return "must be a valid phone number"
	case "language":
		return "is not a supported language"
	default:
		return "is invalid"
	}
}
