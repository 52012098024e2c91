package middleware

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/booking-api/internal/model"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var errorMessages = map[string]string{
	"required":       "is required",
	"max":            "is too long",
	"datetime":       "must be a date in YYYY-MM-DD format",
	"time_of_day":    "must be a time in HH:MM format",
	"booking_status": "must be one of PENDING, CONFIRMED, COMPLETED, CANCELLED",
	"day_of_week":    "must be a day of the week such as MONDAY",
}

var registerOnce sync.Once

// RegisterValidators installs the booking validation tags on gin's binding
// engine. It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		for tag, fn := range map[string]validator.Func{
			"time_of_day":    validateTimeOfDay,
			"booking_status": validateBookingStatus,
			"day_of_week":    validateDayOfWeek,
		} {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
	})
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	_, err := model.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

func validateBookingStatus(fl validator.FieldLevel) bool {
	_, err := model.ParseBookingStatus(fl.Field().String())
	return err == nil
}

func validateDayOfWeek(fl validator.FieldLevel) bool {
	_, err := model.ParseDayOfWeek(fl.Field().String())
	return err == nil
}

// ValidationErrors converts a binding error into per-field messages. Errors
// that are not validation failures come back as a single body error.
func ValidationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		out := make([]ValidationError, 0, len(verrs))
		for _, e := range verrs {
			msg, ok := errorMessages[e.Tag()]
			if !ok {
				msg = fmt.Sprintf("failed on %s", e.Tag())
			}
			out = append(out, ValidationError{Field: e.Field(), Message: msg})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return []ValidationError{{Field: typeErr.Field, Message: "has the wrong type"}}
	}
	return []ValidationError{{Field: "body", Message: err.Error()}}
}

// DescribeValidation flattens ValidationErrors into one message.
func DescribeValidation(err error) string {
	errs := ValidationErrors(err)
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+" "+e.Message)
	}
	return strings.Join(parts, "; ")
}
