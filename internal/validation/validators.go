package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/go-playground/validator/v10"
)

// MinSearchQueryLength is the shortest accepted search query
const MinSearchQueryLength = 2

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Report fields by their JSON names
	Validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// A nullable field validates as its value; null and absent are nil
	Validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		return v.Interface().(models.NullableString).Value
	}, models.NullableString{})

	if err := Validate.RegisterValidation("quadrant", validateQuadrant); err != nil {
		panic(fmt.Sprintf("failed to register quadrant validator: %v", err))
	}
	if err := Validate.RegisterValidation("task_status", validateTaskStatus); err != nil {
		panic(fmt.Sprintf("failed to register task_status validator: %v", err))
	}
}

func validateQuadrant(fl validator.FieldLevel) bool {
	return models.Quadrant(fl.Field().String()).Valid()
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	switch models.TaskStatus(fl.Field().String()) {
	case models.TaskStatusCompleted, models.TaskStatusPending:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// Message turns a validation error into a client facing message naming the
// first failing field.
func Message(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "validation failed"
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag())
	}
}

// ValidateSearchQuery checks the minimum query length after trimming
func ValidateSearchQuery(query string) error {
	if err := Validate.Var(strings.TrimSpace(query), fmt.Sprintf("min=%d", MinSearchQueryLength)); err != nil {
		return fmt.Errorf("search query must be at least %d characters", MinSearchQueryLength)
	}
	return nil
}
