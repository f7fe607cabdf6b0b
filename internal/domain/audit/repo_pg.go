package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strokecare/records/internal/platform/db"
)

// -- Access Logs --

type accessLogStorePG struct {
	ns *db.Namespace
}

func NewAccessLogStore(ns *db.Namespace) AccessLogStore {
	return &accessLogStorePG{ns: ns}
}

const accessLogCols = `id, user_email, action, resource, timestamp, details`

func (r *accessLogStorePG) Append(ctx context.Context, e *AccessLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode access log details: %w", err)
	}
	_, err = r.ns.DB.Exec(ctx,
		`INSERT INTO `+r.ns.Table("access_logs")+` (`+accessLogCols+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserEmail, e.Action, e.Resource, e.Timestamp, raw)
	return err
}

func (r *accessLogStorePG) FindByActor(ctx context.Context, actor string, limit int) ([]*AccessLog, error) {
	rows, err := r.ns.DB.Query(ctx, `SELECT `+accessLogCols+` FROM `+r.ns.Table("access_logs")+`
		WHERE user_email = $1 ORDER BY timestamp DESC, seq DESC LIMIT $2`, actor, limit)
	if err != nil {
		return nil, err
	}
	return collectAccessLogs(rows)
}

func (r *accessLogStorePG) List(ctx context.Context, limit, offset int) ([]*AccessLog, int, error) {
	var total int
	if err := r.ns.DB.QueryRow(ctx, `SELECT COUNT(*) FROM `+r.ns.Table("access_logs")).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.ns.DB.Query(ctx, `SELECT `+accessLogCols+` FROM `+r.ns.Table("access_logs")+`
		ORDER BY timestamp DESC, seq DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	logs, err := collectAccessLogs(rows)
	return logs, total, err
}

func collectAccessLogs(rows pgx.Rows) ([]*AccessLog, error) {
	defer rows.Close()
	var logs []*AccessLog
	for rows.Next() {
		var e AccessLog
		var details []byte
		if err := rows.Scan(&e.ID, &e.UserEmail, &e.Action, &e.Resource, &e.Timestamp, &details); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode access log details: %w", err)
			}
		}
		logs = append(logs, &e)
	}
	return logs, rows.Err()
}

// -- Data Changes --

type dataChangeStorePG struct {
	ns *db.Namespace
}

func NewDataChangeStore(ns *db.Namespace) DataChangeStore {
	return &dataChangeStorePG{ns: ns}
}

const dataChangeCols = `id, user_email, operation, database, collection, record_id, old_data, new_data, timestamp`

func (r *dataChangeStorePG) Append(ctx context.Context, e *DataChange) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.ns.DB.Exec(ctx,
		`INSERT INTO `+r.ns.Table("data_changes")+` (`+dataChangeCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserEmail, e.Operation, e.Database, e.Collection, e.RecordID,
		nullJSON(e.OldData), nullJSON(e.NewData), e.Timestamp)
	return err
}

func (r *dataChangeStorePG) FindByActor(ctx context.Context, actor string, limit int) ([]*DataChange, error) {
	rows, err := r.ns.DB.Query(ctx, `SELECT `+dataChangeCols+` FROM `+r.ns.Table("data_changes")+`
		WHERE user_email = $1 ORDER BY timestamp DESC, seq DESC LIMIT $2`, actor, limit)
	if err != nil {
		return nil, err
	}
	return collectDataChanges(rows)
}

func (r *dataChangeStorePG) FindByRecord(ctx context.Context, database, recordID string) ([]*DataChange, error) {
	rows, err := r.ns.DB.Query(ctx, `SELECT `+dataChangeCols+` FROM `+r.ns.Table("data_changes")+`
		WHERE database = $1 AND record_id = $2 ORDER BY timestamp DESC, seq DESC`, database, recordID)
	if err != nil {
		return nil, err
	}
	return collectDataChanges(rows)
}

func (r *dataChangeStorePG) List(ctx context.Context, limit, offset int) ([]*DataChange, int, error) {
	var total int
	if err := r.ns.DB.QueryRow(ctx, `SELECT COUNT(*) FROM `+r.ns.Table("data_changes")).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.ns.DB.Query(ctx, `SELECT `+dataChangeCols+` FROM `+r.ns.Table("data_changes")+`
		ORDER BY timestamp DESC, seq DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	changes, err := collectDataChanges(rows)
	return changes, total, err
}

func collectDataChanges(rows pgx.Rows) ([]*DataChange, error) {
	defer rows.Close()
	var changes []*DataChange
	for rows.Next() {
		var e DataChange
		var oldData, newData []byte
		if err := rows.Scan(&e.ID, &e.UserEmail, &e.Operation, &e.Database, &e.Collection, &e.RecordID,
			&oldData, &newData, &e.Timestamp); err != nil {
			return nil, err
		}
		e.OldData, e.NewData = oldData, newData
		changes = append(changes, &e)
	}
	return changes, rows.Err()
}

// nullJSON maps an empty or JSON-null snapshot to SQL NULL.
func nullJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
