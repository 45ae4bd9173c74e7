package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Failure kinds surfaced to callers. NotFound is repository.ErrNotFound.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrDeadlineExpired  = errors.New("registration deadline has passed")
	ErrCapacityExceeded = errors.New("not enough seats remaining")
	ErrContention       = errors.New("too much contention, retry the request")
	ErrForbidden        = errors.New("forbidden")
	ErrNotEligible      = errors.New("a booking for this event is required to review it")
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct's validate tags, reporting failures as
// ErrInvalidRequest with the offending fields.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}
