package notifications

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so errors line up with the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// toConfigurationErrors converts validator output into ConfigurationErrors
// joined into a single error.
func toConfigurationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Join(ErrInvalidPreferences, err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &ConfigurationError{Field: fe.Field(), Reason: describeTag(fe)})
	}
	return errors.Join(errs...)
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "timezone":
		return "must be an IANA time zone"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "required":
		return "is required"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
