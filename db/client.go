package db

import (
	"database/sql"

	"github.com/ccdb/ccdb/config"
	"github.com/ccdb/ccdb/log"
)

// QueryParam represents a parameter for database queries
type QueryParam interface{}

func logQuery(kind string, sql string, params []QueryParam) {
	if !config.Get().DBLogQueries {
		return
	}
	log.Debug().
		Str("kind", kind).
		Str("sql", sql).
		Interface("params", params).
		Msg("db query")
}

// Select runs a SELECT query returning multiple rows.
// The scanner function is called for each row to map results.
func Select[T any](query string, params []QueryParam, scanner func(*sql.Rows) (T, error)) ([]T, error) {
	logQuery("select", query, params)

	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = p
	}

	rows, err := GetDB().Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		item, err := scanner(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// SelectOne runs a SELECT query returning a single row (or nil if not found)
func SelectOne[T any](query string, params []QueryParam, scanner func(*sql.Row) (T, error)) (*T, error) {
	logQuery("get", query, params)

	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = p
	}

	row := GetDB().QueryRow(query, args...)
	result, err := scanner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Run executes an INSERT/UPDATE/DELETE query
func Run(query string, params ...QueryParam) (sql.Result, error) {
	logQuery("run", query, params)

	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = p
	}

	return GetDB().Exec(query, args...)
}

// Count returns the count of rows matching the query
func Count(query string, params ...QueryParam) (int64, error) {
	logQuery("count", query, params)

	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = p
	}

	var count int64
	err := GetDB().QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
