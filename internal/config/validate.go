package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Severity of a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the json name of the field.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks c. Struct tag failures are errors; settings that are legal
// but probably unintended are warnings.
func Validate(c Config) []Issue {
	var issues []Issue
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []Issue{{Severity: SeverityError, Path: "config", Message: err.Error()}}
		}
		for _, e := range verrs {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     e.Field(),
				Message:  fmt.Sprintf("value %q failed %q validation", fmt.Sprint(e.Value()), tagWithParam(e)),
			})
		}
	}

	if c.MetricsBackend == "pushgateway" && c.PushgatewayURL == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "pushgateway_url", Message: "required when metrics_backend is pushgateway"})
	}
	if c.StorageKind == "sqlite" && c.DSN == ":memory:" {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "dsn", Message: "in-memory database; saved registries are lost on exit"})
	}
	if c.MetricsBackend == "datadog" && !strings.Contains(c.MetricsTags, "service:") {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "metrics_tags", Message: "no service: tag for datadog"})
	}
	return issues
}

func tagWithParam(e validator.FieldError) string {
	if e.Param() == "" {
		return e.ActualTag()
	}
	return e.ActualTag() + "=" + e.Param()
}

// HasErrors reports whether issues contains an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err joins the error-severity issues, or returns nil.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, errors.New(iss.String()))
		}
	}
	return errors.Join(errs...)
}
