package patient

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_Valid(t *testing.T) {
	if err := samplePatient(1).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_OptionalFieldsMayBeEmpty(t *testing.T) {
	p := &Patient{ID: 0, Attributes: Attributes{Age: 0, Gender: "Other"}}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Patient)
		want   string
	}{
		{"negative id", func(p *Patient) { p.ID = -1 }, "id must be"},
		{"age too high", func(p *Patient) { p.Age = 151 }, "age must be"},
		{"negative age", func(p *Patient) { p.Age = -1 }, "age must be"},
		{"gender", func(p *Patient) { p.Gender = "male" }, "gender must be"},
		{"hypertension", func(p *Patient) { p.Hypertension = 2 }, "hypertension must be 0 or 1"},
		{"stroke", func(p *Patient) { p.Stroke = -1 }, "stroke must be 0 or 1"},
		{"glucose", func(p *Patient) { p.AvgGlucoseLevel = floatPtr(500.1) }, "avg_glucose_level"},
		{"bmi", func(p *Patient) { p.BMI = floatPtr(-0.5) }, "bmi must be"},
		{"work type", func(p *Patient) { p.WorkType = "Astronaut" }, "work_type"},
		{"residence", func(p *Patient) { p.ResidenceType = "Suburban" }, "Residence_type"},
		{"smoking", func(p *Patient) { p.SmokingStatus = "sometimes" }, "smoking_status"},
		{"married", func(p *Patient) { p.EverMarried = "Maybe" }, "ever_married"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePatient(1)
			tt.mutate(p)
			err := p.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestValidate_CollectsAllFields(t *testing.T) {
	p := samplePatient(-5)
	p.Age = 200
	p.Gender = ""
	var ve *ValidationError
	if !errors.As(p.Validate(), &ve) {
		t.Fatal("expected ValidationError")
	}
	if len(ve.Fields) != 3 {
		t.Errorf("expected 3 field errors, got %v", ve.Fields)
	}
}
