package validator

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	RegisterCustomValidations(validate)
}

func RegisterCustomValidations(v *validator.Validate) {
	v.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		lat := fl.Field().Float()
		return lat >= -90 && lat <= 90
	})
	v.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		lng := fl.Field().Float()
		return lng >= -180 && lng <= 180
	})
	v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	v.RegisterValidation("incident_type", func(fl validator.FieldLevel) bool {
		return domain.IncidentType(fl.Field().String()).Valid()
	})
	v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return domain.Severity(fl.Field().String()).Valid()
	})
}

// ValidateStruct returns nil or an *e.ValidationError describing the first
// failing field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return e.NewValidationError("body", err.Error())
	}
	fe := verrs[0]
	return e.NewValidationError(fieldPath(fe.Namespace()), reason(fe))
}

func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lat":
		return "must be within [-90, 90]"
	case "lng":
		return "must be within [-180, 180]"
	case "finite":
		return "must be a finite number"
	case "incident_type":
		return "must be one of fire, medical, security, rescue, flood, other"
	case "severity":
		return "must be one of low, medium, high"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
