package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Access actions.
const (
	ActionLogin              = "login"
	ActionLogout             = "logout"
	ActionFailedLogin        = "failed_login"
	ActionRegister           = "register"
	ActionCreatePatient      = "create_patient"
	ActionUpdatePatient      = "update_patient"
	ActionDeletePatient      = "delete_patient"
	ActionViewDashboard      = "view_dashboard"
	ActionViewPatientList    = "view_patient_list"
	ActionViewPatient        = "view_patient"
	ActionViewPatientHistory = "view_patient_history"
	ActionViewActivityReport = "view_activity_report"
	ActionViewAuditLog       = "view_audit_log"
)

// Data change operations.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// Actors that are not authenticated users.
const (
	ActorAnonymous = "anonymous"
	ActorSystem    = "system"
)

// AccessLog is a coarse access event. UserEmail is a weak reference to the
// acting user.
type AccessLog struct {
	ID        uuid.UUID      `json:"id"`
	UserEmail string         `json:"user_email"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// DataChange is a fine-grained record of one mutation in a namespace.
// OldData is null for a create and NewData is null for a delete.
type DataChange struct {
	ID         uuid.UUID       `json:"id"`
	UserEmail  string          `json:"user_email"`
	Operation  string          `json:"operation"`
	Database   string          `json:"database"`
	Collection string          `json:"collection"`
	RecordID   string          `json:"record_id"`
	OldData    json.RawMessage `json:"old_data"`
	NewData    json.RawMessage `json:"new_data"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Snapshot encodes v for a DataChange. A nil value encodes as JSON null.
func Snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
