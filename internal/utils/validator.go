// internal/utils/validator.go
package utils

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

var pkMobilePattern = regexp.MustCompile(`^03\d{9}$`)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// amounts are validated by value, so gt=0 works on decimal fields
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	validate.RegisterValidation("pk_mobile", validatePKMobile)
	validate.RegisterValidation("payout_method", validatePayoutMethod)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func decimalValue(v reflect.Value) interface{} {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func validatePKMobile(fl validator.FieldLevel) bool {
	number := strings.NewReplacer(" ", "", "-", "").Replace(fl.Field().String())
	return pkMobilePattern.MatchString(number)
}

func validatePayoutMethod(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "jazzcash", "easypaisa", "bank":
		return true
	}
	return false
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "min":
		return e.Field() + " must be at least " + e.Param() + " characters"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "pk_mobile":
		return e.Field() + " must be a mobile number like 03XXXXXXXXX"
	case "payout_method":
		return e.Field() + " must be one of: jazzcash easypaisa bank"
	default:
		return e.Field() + " is invalid"
	}
}
