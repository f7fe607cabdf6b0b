package db

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// NamespaceStatus is the verification result for one namespace.
type NamespaceStatus struct {
	Status string           `json:"status"`
	Schema string           `json:"schema"`
	Counts map[string]int64 `json:"counts,omitempty"`
	Error  string           `json:"error,omitempty"`
	Pool   *PoolStats       `json:"pool,omitempty"`
}

// VerifyResult is the outcome of checking every namespace.
type VerifyResult struct {
	Status     string                      `json:"status"`
	Message    string                      `json:"message"`
	Namespaces map[string]*NamespaceStatus `json:"databases"`
}

// OK reports whether every namespace answered.
func (v *VerifyResult) OK() bool {
	return v.Status == "success"
}

// Verify counts every collection of every namespace. A namespace that fails
// is reported as such without stopping the others.
func Verify(ctx context.Context, namespaces ...*Namespace) *VerifyResult {
	res := &VerifyResult{
		Status:     "success",
		Message:    fmt.Sprintf("All %d databases connected successfully", len(namespaces)),
		Namespaces: make(map[string]*NamespaceStatus, len(namespaces)),
	}
	failed := 0
	for _, ns := range namespaces {
		st := &NamespaceStatus{Status: "connected", Schema: ns.Schema, Counts: make(map[string]int64)}
		for _, coll := range ns.Collections {
			var n int64
			if err := ns.DB.QueryRow(ctx, "SELECT COUNT(*) FROM "+ns.Table(coll)).Scan(&n); err != nil {
				st.Status = "error"
				st.Error = fmt.Sprintf("%s: %v", coll, err)
				st.Counts = nil
				break
			}
			st.Counts[coll] = n
		}
		if pool, ok := ns.DB.(*pgxpool.Pool); ok {
			st.Pool = GetPoolStats(pool)
		}
		if st.Status != "connected" {
			failed++
		}
		res.Namespaces[ns.Name] = st
	}
	if failed > 0 {
		res.Status = "error"
		res.Message = fmt.Sprintf("%d of %d databases unreachable", failed, len(namespaces))
	}
	return res
}

// HealthHandler returns a handler for the database status endpoint.
func HealthHandler(namespaces ...*Namespace) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		res := Verify(ctx, namespaces...)
		if !res.OK() {
			return c.JSON(http.StatusServiceUnavailable, res)
		}
		return c.JSON(http.StatusOK, res)
	}
}
