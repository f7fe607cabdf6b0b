package audit

import "context"

// AccessLogStore is the append-only stream of access events.
type AccessLogStore interface {
	Append(ctx context.Context, e *AccessLog) error
	// FindByActor returns at most limit entries, newest first.
	FindByActor(ctx context.Context, actor string, limit int) ([]*AccessLog, error)
	List(ctx context.Context, limit, offset int) ([]*AccessLog, int, error)
}

// DataChangeStore is the append-only stream of data change events.
type DataChangeStore interface {
	Append(ctx context.Context, e *DataChange) error
	// FindByActor returns at most limit entries, newest first.
	FindByActor(ctx context.Context, actor string, limit int) ([]*DataChange, error)
	// FindByRecord returns every change to one record of a database, newest first.
	FindByRecord(ctx context.Context, database, recordID string) ([]*DataChange, error)
	List(ctx context.Context, limit, offset int) ([]*DataChange, int, error)
}
