package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"taxiprep/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to the operator but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config using the JSON field names (e.g.
// "storage.dsn", "transform[1].options.fields").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var structValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// ValidatePipeline checks p and returns every issue found. Field constraints
// come from the validate struct tags; the cross-field rules (stage order,
// sink requirements, run guards) are checked here.
//
// It does not mutate the pipeline.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	issues = append(issues, structIssues(p)...)
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateTransforms(p.Stages())...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	if !p.Split.Enabled {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "split.enabled",
			Message:  "split disabled; a single \"full\" partition will be written",
		})
	}
	return issues
}

// structIssues converts validator field errors into Issues.
func structIssues(p Pipeline) []Issue {
	err := structValidator.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		msg := fmt.Sprintf("failed %q constraint", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q constraint (%s)", fe.Tag(), fe.Param())
		}
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path,
			Message:  fmt.Sprintf("%s; got %v", msg, fe.Value()),
		})
	}
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if s.Month != 0 && s.Year == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.month",
			Message:  fmt.Sprintf("month %02d without year selects that month across every year", s.Month),
		})
	}
	if s.Year == 0 && s.Month == 0 && !s.ForceFullRun {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source",
			Message:  "no year or month; a directory source needs force_full_run to process the full history",
		})
	}
	return issues
}

// stageOrder is the required relative order of the stages that depend on
// each other's output.
var stageOrder = map[string]int{
	KindDedupe:       0,
	KindRequire:      0,
	KindDuration:     1,
	KindIntegrity:    2,
	KindOutlier:      3,
	KindZones:        4,
	KindTimeFeatures: 4,
}

func validateTransforms(ts []Transform) []Issue {
	var issues []Issue

	seen := map[string]int{}
	last := -1
	for i, t := range ts {
		path := fmt.Sprintf("transform[%d].kind", i)
		rank, ok := stageOrder[t.Kind]
		if !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("unknown transform kind %q", t.Kind),
			})
			continue
		}
		if prev, dup := seen[t.Kind]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("transform %q already configured at transform[%d]", t.Kind, prev),
			})
			continue
		}
		seen[t.Kind] = i
		if rank < last {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("transform %q must run before the stages configured ahead of it", t.Kind),
			})
		}
		if rank > last {
			last = rank
		}

		if t.Kind == KindRequire {
			fields := t.Options.StringSlice("fields")
			if len(fields) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     fmt.Sprintf("transform[%d].options.fields", i),
					Message:  "require has no fields; it will not drop anything",
				})
			}
			for _, f := range fields {
				if _, ok := schema.Canonical(f); !ok {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Path:     fmt.Sprintf("transform[%d].options.fields", i),
						Message:  fmt.Sprintf("unknown source column %q", f),
					})
				}
			}
		}
	}

	for _, k := range []string{KindIntegrity, KindOutlier} {
		if _, ok := seen[k]; ok {
			if _, ok := seen[KindDuration]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "transform",
					Message:  fmt.Sprintf("transform %q needs the duration stage", k),
				})
			}
		}
	}
	if _, ok := seen[KindOutlier]; ok {
		if _, ok := seen[KindIntegrity]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "transform",
				Message:  "outlier runs without integrity; quantile caps will see invalid rows",
			})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if s.IsFile() {
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.path",
				Message:  fmt.Sprintf("%s sink requires an output directory", s.Kind),
			})
		}
		return issues
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  fmt.Sprintf("%s sink requires a dsn", s.Kind),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend without url; http://localhost:9091 is used",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend without address; 127.0.0.1:8125 is used",
			})
		}
	}
	return issues
}
