package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Logical database names recorded in audit entries. They match the names the
// data was historically stored under, so old audit rows and new ones agree.
const (
	UsersDB    = "user_management_db"
	PatientsDB = "stroke_patient_db"
	AuditDB    = "audit_logs_db"
)

var schemaPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Querier is the subset of pgxpool.Pool the repositories rely on.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Namespace is one logical database: a schema reached through a pool. The
// three namespaces share nothing but the client library; there is no
// transaction spanning them.
type Namespace struct {
	Key         string
	Name        string
	Schema      string
	Collections []string
	DB          Querier
}

// Table returns the schema-qualified, quoted name of a table in the namespace.
func (n *Namespace) Table(name string) string {
	return pgx.Identifier{n.Schema, name}.Sanitize()
}

// NamespaceConfig describes how to reach one namespace.
type NamespaceConfig struct {
	URL    string
	Schema string
}

// Namespaces holds the three databases of the application.
type Namespaces struct {
	Users    *Namespace
	Patients *Namespace
	Audit    *Namespace

	pools map[string]*pgxpool.Pool
}

// Open connects to every namespace. Namespaces that share a connection
// string share a pool. Connection happens once at startup and any
// unreachable namespace fails the whole call; a pool is never rebuilt after a
// failure.
func Open(ctx context.Context, users, patients, audit NamespaceConfig, maxConns, minConns int32) (*Namespaces, error) {
	ns := &Namespaces{pools: make(map[string]*pgxpool.Pool)}

	build := func(key, name string, cfg NamespaceConfig, collections ...string) (*Namespace, error) {
		if !schemaPattern.MatchString(cfg.Schema) {
			return nil, fmt.Errorf("invalid schema name for %s: %q", name, cfg.Schema)
		}
		pool, ok := ns.pools[cfg.URL]
		if !ok {
			var err error
			pool, err = NewPool(ctx, cfg.URL, maxConns, minConns)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			ns.pools[cfg.URL] = pool
		}
		return &Namespace{Key: key, Name: name, Schema: cfg.Schema, Collections: collections, DB: pool}, nil
	}

	var err error
	if ns.Users, err = build("users", UsersDB, users, "users", "sessions"); err != nil {
		ns.Close()
		return nil, err
	}
	if ns.Patients, err = build("patients", PatientsDB, patients, "patients", "patient_history"); err != nil {
		ns.Close()
		return nil, err
	}
	if ns.Audit, err = build("audit", AuditDB, audit, "access_logs", "data_changes"); err != nil {
		ns.Close()
		return nil, err
	}
	return ns, nil
}

// All returns the namespaces in a stable order.
func (n *Namespaces) All() []*Namespace {
	return []*Namespace{n.Users, n.Patients, n.Audit}
}

// ByKey returns the namespace with the given key ("users", "patients" or
// "audit"), or nil.
func (n *Namespaces) ByKey(key string) *Namespace {
	for _, ns := range n.All() {
		if ns != nil && ns.Key == key {
			return ns
		}
	}
	return nil
}

// Pools returns the distinct pools opened for the namespaces.
func (n *Namespaces) Pools() []*pgxpool.Pool {
	pools := make([]*pgxpool.Pool, 0, len(n.pools))
	for _, p := range n.pools {
		pools = append(pools, p)
	}
	return pools
}

// PoolFor returns the pool backing a namespace, or nil when the namespace
// was not opened through Open.
func (n *Namespaces) PoolFor(ns *Namespace) *pgxpool.Pool {
	if ns == nil {
		return nil
	}
	pool, _ := ns.DB.(*pgxpool.Pool)
	return pool
}

func (n *Namespaces) Close() {
	for url, p := range n.pools {
		p.Close()
		delete(n.pools, url)
	}
}

// EnsureSchema creates the namespace schema if it does not exist.
func EnsureSchema(ctx context.Context, q Querier, schema string) error {
	if !schemaPattern.MatchString(schema) {
		return fmt.Errorf("invalid schema name: %s", schema)
	}
	if _, err := q.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	return nil
}
