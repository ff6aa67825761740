package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their json names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// signupRequest is the signup body. Lengths count runes.
type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// validateRequest checks s against its validate tags and describes the
// first failure.
func validateRequest(s any) *httpx.APIError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return httpx.ErrInvalidRequest
	}

	fe := verrs[0]
	var desc string
	switch fe.Tag() {
	case "required":
		desc = fmt.Sprintf("%s is required", fe.Field())
	case "email":
		desc = fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		desc = fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		desc = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		desc = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return httpx.ErrInvalidRequest.WithDescription(desc)
}
