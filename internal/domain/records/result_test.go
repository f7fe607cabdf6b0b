package records

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"duplicate", duplicateKey(1), KindDuplicateKey},
		{"wrapped not found", fmt.Errorf("update: %w", notFound(2)), KindNotFound},
		{"plain error", errors.New("boom"), KindStoreUnavailable},
		{"validation", ValidationFailed(errors.New("age out of range")), KindValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnavailable_WrapsCause(t *testing.T) {
	err := unavailable("record store", errDown)
	if !errors.Is(err, errDown) {
		t.Error("expected cause to be reachable with errors.Is")
	}
	if err.Message != "record store unavailable" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestFailed_HidesCause(t *testing.T) {
	r := Failed(unavailable("audit store", errDown))
	if r.Success || r.Code != KindStoreUnavailable {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Message != "audit store unavailable" {
		t.Errorf("Message = %q", r.Message)
	}

	r = Failed(errors.New("raw driver error"))
	if r.Message != "operation failed" {
		t.Errorf("unexpected message for foreign error: %q", r.Message)
	}
}

func TestFromOutcome(t *testing.T) {
	p := newPatient(1, 30)
	r := FromOutcome("patient created", &Outcome{Patient: p})
	if !r.Success || r.Partial || r.Message != "patient created" || r.Data != p {
		t.Errorf("unexpected result: %+v", r)
	}

	r = FromOutcome("patient deleted", &Outcome{Failures: []StepFailure{{Step: StepHistory, Message: "history write failed"}}})
	if !r.Partial || r.Message != "patient deleted (audit incomplete)" || r.Data != nil {
		t.Errorf("unexpected partial result: %+v", r)
	}
}
