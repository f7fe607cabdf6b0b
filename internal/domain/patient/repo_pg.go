package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strokecare/records/internal/platform/db"
)

// -- Record Store --

type recordStorePG struct {
	ns *db.Namespace
}

func NewRecordStore(ns *db.Namespace) RecordStore {
	return &recordStorePG{ns: ns}
}

func (r *recordStorePG) Insert(ctx context.Context, p *Patient) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode patient %d: %w", p.ID, err)
	}
	_, err = r.ns.DB.Exec(ctx,
		`INSERT INTO `+r.ns.Table("patients")+` (id, doc) VALUES ($1, $2)`,
		p.ID, doc)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *recordStorePG) FindOne(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.ns.DB.QueryRow(ctx,
		`SELECT doc FROM `+r.ns.Table("patients")+` WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *recordStorePG) Replace(ctx context.Context, p *Patient) (int64, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encode patient %d: %w", p.ID, err)
	}
	tag, err := r.ns.DB.Exec(ctx,
		`UPDATE `+r.ns.Table("patients")+` SET doc = $2, updated_at = NOW() WHERE id = $1`,
		p.ID, doc)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *recordStorePG) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.ns.DB.Exec(ctx, `DELETE FROM `+r.ns.Table("patients")+` WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *recordStorePG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.ns.DB.QueryRow(ctx, `SELECT COUNT(*) FROM `+r.ns.Table("patients")).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.ns.DB.Query(ctx,
		`SELECT doc FROM `+r.ns.Table("patients")+` ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

const statsQuery = `SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE (doc->>'stroke')::int = 1),
	COUNT(*) FILTER (WHERE (doc->>'hypertension')::int = 1
		AND ((doc->>'heart_disease')::int = 1 OR (doc->>'age')::float8 >= 65)),
	COALESCE(AVG((doc->>'age')::float8), 0)
FROM `

func (r *recordStorePG) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{GenderDistribution: make(map[string]int)}
	if err := r.ns.DB.QueryRow(ctx, statsQuery+r.ns.Table("patients")).Scan(
		&s.TotalPatients, &s.StrokeCases, &s.HighRisk, &s.AvgAge,
	); err != nil {
		return nil, fmt.Errorf("patient stats: %w", err)
	}
	s.AvgAge = roundTenth(s.AvgAge)

	rows, err := r.ns.DB.Query(ctx,
		`SELECT COALESCE(doc->>'gender', ''), COUNT(*) FROM `+r.ns.Table("patients")+` GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("gender distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var gender string
		var n int
		if err := rows.Scan(&gender, &n); err != nil {
			return nil, err
		}
		s.GenderDistribution[gender] = n
	}
	return s, rows.Err()
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// -- History Store --

type historyStorePG struct {
	ns *db.Namespace
}

func NewHistoryStore(ns *db.Namespace) HistoryStore {
	return &historyStorePG{ns: ns}
}

func (r *historyStorePG) Append(ctx context.Context, e *HistoryEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	oldData, err := marshalSnapshot(e.OldData)
	if err != nil {
		return err
	}
	newData, err := marshalSnapshot(e.NewData)
	if err != nil {
		return err
	}
	_, err = r.ns.DB.Exec(ctx, `
		INSERT INTO `+r.ns.Table("patient_history")+` (id, patient_id, modified_by, modified_at, old_data, new_data)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.PatientID, e.ModifiedBy, e.ModifiedAt, oldData, newData)
	return err
}

func (r *historyStorePG) FindByPatient(ctx context.Context, patientID int64) ([]*HistoryEntry, error) {
	rows, err := r.ns.DB.Query(ctx, `
		SELECT id, patient_id, modified_by, modified_at, old_data, new_data
		FROM `+r.ns.Table("patient_history")+`
		WHERE patient_id = $1
		ORDER BY modified_at, seq`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var oldData, newData []byte
		if err := rows.Scan(&e.ID, &e.PatientID, &e.ModifiedBy, &e.ModifiedAt, &oldData, &newData); err != nil {
			return nil, err
		}
		if e.OldData, err = unmarshalSnapshot(oldData); err != nil {
			return nil, err
		}
		if e.NewData, err = unmarshalSnapshot(newData); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var p Patient
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode patient document: %w", err)
	}
	return &p, nil
}

// marshalSnapshot encodes a snapshot; nil becomes SQL NULL.
func marshalSnapshot(p *Patient) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func unmarshalSnapshot(b []byte) (*Patient, error) {
	if b == nil {
		return nil, nil
	}
	var p Patient
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &p, nil
}
