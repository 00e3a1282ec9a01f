package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Scope selects one live row of a tenant: the id plus the parking it
// belongs to.  Every read and write of tenant data goes through a Scope.
type Scope struct {
	ID        uint64
	ParkingID uint64
}

// Set is one column assignment of an UPDATE.
type Set struct {
	Column string
	Value  interface{}
}

// Cond is an extra WHERE condition with a single '?' placeholder, ANDed to
// the scope filter.  It is how callers express optimistic preconditions
// such as "status = ?".
type Cond struct {
	Expr string
	Arg  interface{}
}

// TenantStore holds the keyed primitives shared by tenant-owned tables:
// find by id, update with audit stamps and soft delete.  It works on both a
// *sqlx.DB and a *sqlx.Tx so the same calls run inside or outside a
// transaction.
type TenantStore[T any] struct {
	table     string
	columns   string
	tenantCol string // column compared with Scope.ParkingID; empty disables the tenant filter
}

// NewTenantStore describes a table.  columns is the SELECT list used by
// FindByID and must match the db tags of T.
func NewTenantStore[T any](table, tenantCol string, columns ...string) TenantStore[T] {
	return TenantStore[T]{table: table, columns: strings.Join(columns, ", "), tenantCol: tenantCol}
}

// where renders the live-row filter for a scope.
func (s TenantStore[T]) where(scope Scope) (string, []interface{}) {
	clause := "id = ? AND deleted_at IS NULL AND deleted_by IS NULL"
	args := []interface{}{scope.ID}
	if s.tenantCol != "" {
		clause = "id = ? AND " + s.tenantCol + " = ? AND deleted_at IS NULL AND deleted_by IS NULL"
		args = append(args, scope.ParkingID)
	}
	return clause, args
}

// FindByID loads one live row of the tenant.  ErrNotFound when absent.
func (s TenantStore[T]) FindByID(ctx context.Context, q sqlx.ExtContext, scope Scope) (T, error) {
	var out T
	where, args := s.where(scope)
	query := "SELECT " + s.columns + " FROM " + s.table + " WHERE " + where
	err := sqlx.GetContext(ctx, q, &out, q.Rebind(query), args...)
	return out, mapErr(err)
}

// Update applies sets to one live row of the tenant, stamping updated_by
// and updated_at, and returns the number of rows affected.  Zero means the
// row is gone or an extra condition did not hold.
func (s TenantStore[T]) Update(ctx context.Context, ex sqlx.ExtContext, scope Scope, actor uint64, sets []Set, extra ...Cond) (int64, error) {
	assignments := make([]string, 0, len(sets)+2)
	args := make([]interface{}, 0, len(sets)+len(extra)+3)
	for _, st := range sets {
		assignments = append(assignments, st.Column+" = ?")
		args = append(args, st.Value)
	}
	assignments = append(assignments, "updated_by = ?", "updated_at = CURRENT_TIMESTAMP")
	args = append(args, actor)

	where, whereArgs := s.where(scope)
	args = append(args, whereArgs...)
	for _, c := range extra {
		where += " AND " + c.Expr
		args = append(args, c.Arg)
	}
	query := "UPDATE " + s.table + " SET " + strings.Join(assignments, ", ") + " WHERE " + where
	res, err := ex.ExecContext(ctx, ex.Rebind(query), args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

// SoftDelete tombstones one live row of the tenant.
func (s TenantStore[T]) SoftDelete(ctx context.Context, ex sqlx.ExtContext, scope Scope, actor uint64) (int64, error) {
	where, args := s.where(scope)
	query := "UPDATE " + s.table + " SET deleted_at = CURRENT_TIMESTAMP, deleted_by = ? WHERE " + where
	res, err := ex.ExecContext(ctx, ex.Rebind(query), append([]interface{}{actor}, args...)...)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

// insert runs an INSERT and returns the generated id.  PostgreSQL has no
// LastInsertId, so there the statement is extended with RETURNING id.
func insert(ctx context.Context, ex sqlx.ExtContext, query string, args ...interface{}) (uint64, error) {
	if ex.DriverName() == "postgres" {
		var id uint64
		err := ex.QueryRowxContext(ctx, ex.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, mapErr(err)
	}
	res, err := ex.ExecContext(ctx, ex.Rebind(query), args...)
	if err != nil {
		return 0, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
