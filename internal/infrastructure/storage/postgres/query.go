package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fuelstation/internal/core/apperror"
)

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Get runs query and scans exactly one row into T.
// No row is reported as NOT_FOUND for entity/key.
func Get[T any](ctx context.Context, q Querier, query squirrel.Sqlizer, entity string, key any) (*T, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out T
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entity, key)
		}
		return nil, fmt.Errorf("get %s: %w", entity, err)
	}
	return &out, nil
}

// Select runs query and scans all rows into a slice of T.
func Select[T any](ctx context.Context, q Querier, query squirrel.Sqlizer) ([]T, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []T
	if err := pgxscan.Select(ctx, q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return out, nil
}

// Exec runs a statement and returns the affected row count.
func Exec(ctx context.Context, q Querier, query squirrel.Sqlizer) (int64, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExecOne runs a statement that must touch exactly one row; zero rows is NOT_FOUND.
func ExecOne(ctx context.Context, q Querier, query squirrel.Sqlizer, entity string, key any) error {
	n, err := Exec(ctx, q, query)
	if err != nil {
		return fmt.Errorf("write %s: %w", entity, err)
	}
	if n == 0 {
		return apperror.NewNotFound(entity, key)
	}
	return nil
}
