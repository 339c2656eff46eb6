package engine

import (
	"strings"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// Status is what happened to one rule or sub-mapping.
type Status string

// Rule statuses.
const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusIgnored Status = "ignored"
	StatusFailed  Status = "failed"
)

// Outcome records the execution of one rule, or of one sub-mapping of a
// ONE_TO_MANY rule.
type Outcome struct {
	RuleIndex int
	// SubIndex is the sub-mapping index, or -1 for whole rules.
	SubIndex   int
	TargetPath string
	Status     Status
	Err        error
}

// Warning is a per-rule error surfaced alongside a successful result.
type Warning struct {
	RuleIndex  int    `json:"ruleIndex"`
	SubIndex   *int   `json:"subMappingIndex,omitempty"`
	TargetPath string `json:"targetPath,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// Result is the outcome of one transformation.
type Result struct {
	Success         bool      `json:"success"`
	TransformedData string    `json:"transformedData,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	Warnings        []Warning `json:"warnings,omitempty"`

	SourceProtocol document.Protocol `json:"-"`
	TargetProtocol document.Protocol `json:"-"`
	Outcomes       []Outcome         `json:"-"`
	// Err is the fatal error of a failed result.
	Err error `json:"-"`
}

// Written returns the number of outcomes that wrote a value.
func (r *Result) Written() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusWritten {
			n++
		}
	}
	return n
}

// RuleErrors returns the errors of failed rules in execution order.
func (r *Result) RuleErrors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

func (r *Result) collectWarnings() {
	for _, o := range r.Outcomes {
		if o.Err == nil {
			continue
		}
		w := Warning{
			RuleIndex:  o.RuleIndex,
			TargetPath: o.TargetPath,
			Kind:       util.ErrorKind(o.Err),
			Message:    o.Err.Error(),
		}
		if o.SubIndex >= 0 {
			sub := o.SubIndex
			w.SubIndex = &sub
		}
		r.Warnings = append(r.Warnings, w)
	}
}

func (r *Result) fail(err error) *Result {
	r.Success = false
	r.TransformedData = ""
	r.Err = err
	r.ErrorMessage = strings.ReplaceAll(err.Error(), "\n", "; ")
	return r
}
