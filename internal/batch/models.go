package batch

import (
	"fmt"
	"time"
)

// Identifier is a company tax ID (CNPJ). Its format is not interpreted here.
type Identifier string

// Credential is the API key handed to the issuer untouched.
type Credential string

// Company holds the metadata known about one identifier.
type Company struct {
	CNPJ  Identifier        `json:"cnpj"`
	Name  string            `json:"name"`
	Extra map[string]string `json:"extra,omitempty"`
}

// Registry maps identifiers to company metadata. The processor only forwards
// it; the issuer uses it to name output artifacts.
type Registry map[Identifier]Company

// Status is the settled state of one identifier.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusFault
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusFault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// ItemOutcome records what happened to one identifier.
type ItemOutcome struct {
	Identifier Identifier
	Index      int // 1-based position in the batch
	Total      int
	Status     Status
	Duration   time.Duration
	Err        error // set only for StatusFault
}

// Succeeded reports whether the identifier was issued.
func (o ItemOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Result is the aggregate outcome of a batch run. Success+Failure always
// equals len(Items).
type Result struct {
	Success int
	Failure int
	Items   []ItemOutcome
}

func (r *Result) record(outcome ItemOutcome) {
	if outcome.Succeeded() {
		r.Success++
	} else {
		r.Failure++
	}
	r.Items = append(r.Items, outcome)
}

// Processed returns the number of identifiers that were settled.
func (r Result) Processed() int {
	return r.Success + r.Failure
}

// Faults returns how many of the failures were faults rather than a false
// outcome from the issuer.
func (r Result) Faults() int {
	n := 0
	for _, item := range r.Items {
		if item.Status == StatusFault {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that did not succeed, in processing order.
func (r Result) Failed() []ItemOutcome {
	var failed []ItemOutcome
	for _, item := range r.Items {
		if !item.Succeeded() {
			failed = append(failed, item)
		}
	}
	return failed
}

// SuccessRate returns the success rate as a percentage
func (r Result) SuccessRate() float64 {
	if r.Processed() == 0 {
		return 0.0
	}
	return float64(r.Success) / float64(r.Processed()) * 100.0
}

// String returns a string representation of the result
func (r Result) String() string {
	return fmt.Sprintf("Processed: %d, Success: %d (%.2f%%), Failure: %d (faults: %d)",
		r.Processed(), r.Success, r.SuccessRate(), r.Failure, r.Faults())
}
