package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	connectionIndexRe = regexp.MustCompile(`feature_service_sync\[(\d+)\]`)
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
			_, err := regexp.Compile(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Issue is one invalid setting.
type Issue struct {
	// Field is the dotted TOML path, e.g. feature_service_sync[1].field_map.
	Field   string
	Message string
	// Connection is the index of the affected connection, or -1.
	Connection int
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Validate checks the config. Issues on a connection leave that connection
// inert; other issues make the config unusable.
func (c *Config) Validate() []Issue {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Issue{{Field: "config", Message: err.Error(), Connection: -1}}
	}

	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		issue := Issue{Field: field, Message: describe(fe), Connection: -1}
		if m := connectionIndexRe.FindStringSubmatch(field); m != nil {
			issue.Connection, _ = strconv.Atoi(m[1])
		}
		issues = append(issues, issue)
	}
	return issues
}

// FatalIssues returns the issues that are not scoped to one connection.
func FatalIssues(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Connection < 0 {
			out = append(out, i)
		}
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "url":
		return "must be a valid URL"
	case "regexp":
		return "must be a valid regular expression"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
