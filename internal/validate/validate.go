package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lysyi3m/onthisday/internal/model"
)

var isoDatePattern = regexp.MustCompile(`^-?[0-9]{4,}-[0-9]{2}-[0-9]{2}$`)

// New returns a validator that reports JSON field names and understands the
// entityid, isodate and era tags used by the model.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
		return model.IsEntityID(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return IsISODate(fl.Field().String())
	})
	_ = v.RegisterValidation("era", func(fl validator.FieldLevel) bool {
		return slices.Contains(model.Eras, fl.Field().String())
	})

	return v
}

func IsISODate(s string) bool {
	if !isoDatePattern.MatchString(s) {
		return false
	}
	parts := strings.Split(strings.TrimPrefix(s, "-"), "-")
	month, day := parts[1], parts[2]
	return month >= "00" && month <= "12" && day >= "00" && day <= "31"
}

// Path converts a validator namespace like "HistoricalEventRecord.relatedPages[0].desktopUrl"
// into "relatedPages[0].desktopUrl" by dropping the root type name.
func Path(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// Message renders a field error without the Go-centric default wording.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map || fe.Kind() == reflect.String {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a URL"
	case "hexadecimal":
		return "must be hexadecimal"
	case "entityid":
		return "must be a knowledge-graph entity id"
	case "isodate":
		return "must be an ISO date (YYYY-MM-DD)"
	case "era":
		return fmt.Sprintf("must be one of [%s]", strings.Join(model.Eras, " "))
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// Issues flattens a validator error into "path: message" strings.
func Issues(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, fmt.Sprintf("%s: %s", Path(fe), Message(fe)))
	}
	return issues
}
