package patient

import (
	"time"

	"github.com/google/uuid"
)

// Attributes are the mutable fields of a patient document. JSON keys follow
// the stroke dataset column names.
type Attributes struct {
	Age             float64  `json:"age"`
	Gender          string   `json:"gender"`
	Hypertension    int      `json:"hypertension"`
	HeartDisease    int      `json:"heart_disease"`
	EverMarried     string   `json:"ever_married,omitempty"`
	WorkType        string   `json:"work_type,omitempty"`
	ResidenceType   string   `json:"Residence_type,omitempty"`
	AvgGlucoseLevel *float64 `json:"avg_glucose_level"`
	BMI             *float64 `json:"bmi"`
	SmokingStatus   string   `json:"smoking_status,omitempty"`
	Stroke          int      `json:"stroke"`
}

// Patient is the current-state document held by the record store. ID is
// supplied by the caller and never changes.
type Patient struct {
	ID int64 `json:"id"`
	Attributes
}

// WithAttributes returns a copy of p whose mutable fields are replaced by a.
func (p *Patient) WithAttributes(a Attributes) *Patient {
	return &Patient{ID: p.ID, Attributes: a}
}

// Clone returns a deep copy, so snapshots stored in history never alias the
// caller's document.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	c := *p
	if p.AvgGlucoseLevel != nil {
		v := *p.AvgGlucoseLevel
		c.AvgGlucoseLevel = &v
	}
	if p.BMI != nil {
		v := *p.BMI
		c.BMI = &v
	}
	return &c
}

// History actions derived from which snapshots an entry carries.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// HistoryEntry is one immutable transition of a patient document. OldData is
// nil for a creation and NewData is nil for a deletion.
type HistoryEntry struct {
	ID         uuid.UUID `json:"id"`
	PatientID  int64     `json:"patient_id"`
	ModifiedBy string    `json:"modified_by"`
	ModifiedAt time.Time `json:"modified_at"`
	OldData    *Patient  `json:"old_data"`
	NewData    *Patient  `json:"new_data"`
}

// Action reports which transition the entry describes.
func (h *HistoryEntry) Action() string {
	switch {
	case h.OldData == nil:
		return ActionCreate
	case h.NewData == nil:
		return ActionDelete
	default:
		return ActionUpdate
	}
}

// Stats are the dashboard aggregates over all current documents.
type Stats struct {
	TotalPatients      int            `json:"totalPatients"`
	StrokeCases        int            `json:"strokeCases"`
	HighRisk           int            `json:"highRisk"`
	AvgAge             float64        `json:"avgAge"`
	GenderDistribution map[string]int `json:"genderDistribution"`
}
