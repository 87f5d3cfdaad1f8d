package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared struct validator. Field names in errors use
// the json tag.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterValidation("well_id", isWellID)
		instance = v
	})
	return instance
}

// FieldIssue is one failed constraint.
type FieldIssue struct {
	Field   string
	Message string
}

// Struct validates v and flattens any failures into field issues. A
// non-validation error (e.g. v is not a struct) is returned as is.
func Struct(v interface{}) ([]FieldIssue, error) {
	err := Validator().Struct(v)
	if err == nil {
		return nil, nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}

	issues := make([]FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, FieldIssue{Field: fieldPath(fe), Message: FormatFieldError(fe)})
	}
	return issues, nil
}

// fieldPath strips the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// FormatFieldError renders a human readable message for one failed constraint.
func FormatFieldError(fe validator.FieldError) string {
	field := fieldPath(fe)
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", field, strings.ToLower(param))
	case "well_id":
		return fmt.Sprintf("%s must be a plate well such as A1 or H12", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// isWellID accepts A1 through H12, case-insensitive.
func isWellID(fl validator.FieldLevel) bool {
	return domain.IsWellID(domain.NormalizeWellID(fl.Field().String()))
}

// Join renders issues as a single sentence list.
func Join(issues []FieldIssue) string {
	msgs := make([]string, len(issues))
	for i, is := range issues {
		msgs[i] = is.Message
	}
	return strings.Join(msgs, "; ")
}
