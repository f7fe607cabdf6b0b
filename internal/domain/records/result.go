package records

import "errors"

// Result is the transport-neutral envelope returned for every coordinator
// operation.
type Result struct {
	Success  bool          `json:"success"`
	Code     Kind          `json:"code,omitempty"`
	Message  string        `json:"message"`
	Partial  bool          `json:"partial,omitempty"`
	Failures []StepFailure `json:"failures,omitempty"`
	Data     any           `json:"data,omitempty"`
}

// Succeeded builds a result for a completed operation.
func Succeeded(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// FromOutcome builds a result for a mutation whose record write succeeded.
func FromOutcome(message string, out *Outcome) Result {
	r := Result{Success: true, Message: message, Partial: out.Partial(), Failures: out.Failures}
	if out.Patient != nil {
		r.Data = out.Patient
	}
	if r.Partial {
		r.Message = message + " (audit incomplete)"
	}
	return r
}

// Failed builds a result from an error, exposing only its kind and message.
func Failed(err error) Result {
	r := Result{Success: false, Code: KindOf(err)}
	var e *Error
	if errors.As(err, &e) {
		r.Message = e.Message
	} else {
		r.Message = "operation failed"
	}
	return r
}
