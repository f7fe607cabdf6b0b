package patient

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	genders        = []string{"Male", "Female", "Other"}
	maritalValues  = []string{"Yes", "No"}
	workTypes      = []string{"children", "Govt_job", "Never_worked", "Private", "Self-employed"}
	residenceTypes = []string{"Urban", "Rural"}
	smokingValues  = []string{"formerly smoked", "never smoked", "smokes", "Unknown"}
)

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid patient: " + strings.Join(e.Fields, "; ")
}

// Validate checks the identifier and the attributes.
func (p *Patient) Validate() error {
	var fields []string
	if p.ID < 0 {
		fields = append(fields, "id must be a non-negative integer")
	}
	if err := p.Attributes.Validate(); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			fields = append(fields, ve.Fields...)
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Validate checks value ranges. Categorical lifestyle fields are optional but
// must use the dataset vocabulary when set.
func (a *Attributes) Validate() error {
	var fields []string

	if a.Age < 0 || a.Age > 150 {
		fields = append(fields, "age must be between 0 and 150")
	}
	if !oneOf(a.Gender, genders) {
		fields = append(fields, "gender must be one of Male, Female, Other")
	}
	for name, v := range map[string]int{
		"hypertension":  a.Hypertension,
		"heart_disease": a.HeartDisease,
		"stroke":        a.Stroke,
	} {
		if v != 0 && v != 1 {
			fields = append(fields, fmt.Sprintf("%s must be 0 or 1", name))
		}
	}
	if a.AvgGlucoseLevel != nil && (*a.AvgGlucoseLevel < 0 || *a.AvgGlucoseLevel > 500) {
		fields = append(fields, "avg_glucose_level must be between 0 and 500")
	}
	if a.BMI != nil && (*a.BMI < 0 || *a.BMI > 100) {
		fields = append(fields, "bmi must be between 0 and 100")
	}
	if a.EverMarried != "" && !oneOf(a.EverMarried, maritalValues) {
		fields = append(fields, "ever_married must be Yes or No")
	}
	if a.WorkType != "" && !oneOf(a.WorkType, workTypes) {
		fields = append(fields, "work_type is not a known value")
	}
	if a.ResidenceType != "" && !oneOf(a.ResidenceType, residenceTypes) {
		fields = append(fields, "Residence_type must be Urban or Rural")
	}
	if a.SmokingStatus != "" && !oneOf(a.SmokingStatus, smokingValues) {
		fields = append(fields, "smoking_status is not a known value")
	}

	if len(fields) > 0 {
		sort.Strings(fields)
		return &ValidationError{Fields: fields}
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
