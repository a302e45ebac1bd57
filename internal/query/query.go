// Package query loads item binding rows from PostgreSQL.
//
// The binding's sort and filter directives are translated into ORDER BY and
// WHERE clauses so the database does the work before rows reach the table.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/p13ntable/internal/table"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultLimit caps the rows loaded per refresh.
const DefaultLimit = 500

// DBTX is the subset of *pgxpool.Pool and pgx.Tx used for reads.
type DBTX interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteColumns quotes every column name.
func quoteColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdentifier(c)
	}
	return out
}

// buildSingleFilter generates SQL for a single filter.
func buildSingleFilter(f table.Filter, argIdx int) (string, []interface{}, int) {
	col := quoteIdentifier(f.Path)
	text := "CAST(" + col + " AS TEXT)"
	value := table.FormatValue(f.Value)

	switch f.Operator {
	case table.OpContains:
		return fmt.Sprintf("%s ILIKE $%d", text, argIdx),
			[]interface{}{"%" + value + "%"}, argIdx + 1

	case table.OpStartsWith:
		return fmt.Sprintf("%s ILIKE $%d", text, argIdx),
			[]interface{}{value + "%"}, argIdx + 1

	case table.OpEndsWith:
		return fmt.Sprintf("%s ILIKE $%d", text, argIdx),
			[]interface{}{"%" + value}, argIdx + 1

	case table.OpEQ:
		return fmt.Sprintf("%s = $%d", col, argIdx), []interface{}{f.Value}, argIdx + 1

	case table.OpGE:
		return fmt.Sprintf("%s >= $%d", col, argIdx), []interface{}{f.Value}, argIdx + 1

	case table.OpLE:
		return fmt.Sprintf("%s <= $%d", col, argIdx), []interface{}{f.Value}, argIdx + 1

	case table.OpGT:
		return fmt.Sprintf("%s > $%d", col, argIdx), []interface{}{f.Value}, argIdx + 1

	case table.OpLT:
		return fmt.Sprintf("%s < $%d", col, argIdx), []interface{}{f.Value}, argIdx + 1

	default:
		return "", nil, argIdx
	}
}

// BuildSelect builds a SELECT of columns from tableName honoring q.
// Filters on the same path are ORed, different paths are ANDed. Sorters and
// filters must reference one of columns.
func BuildSelect(tableName string, columns []string, q table.Query, limit int) (string, []interface{}, error) {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	var (
		args    []interface{}
		argIdx  = 1
		clauses []string
		order   []string
		byPath  = make(map[string][]string)
	)
	for _, f := range q.Filters {
		if !known[f.Path] {
			return "", nil, fmt.Errorf("filter on unknown column %q", f.Path)
		}
		cond, fargs, next := buildSingleFilter(f, argIdx)
		if cond == "" {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
		}
		if _, ok := byPath[f.Path]; !ok {
			order = append(order, f.Path)
		}
		byPath[f.Path] = append(byPath[f.Path], cond)
		args = append(args, fargs...)
		argIdx = next
	}
	for _, path := range order {
		conds := byPath[path]
		if len(conds) == 1 {
			clauses = append(clauses, conds[0])
		} else {
			clauses = append(clauses, "("+strings.Join(conds, " OR ")+")")
		}
	}

	var orderParts []string
	for _, s := range q.Sorters {
		if !known[s.Path] {
			return "", nil, fmt.Errorf("sort on unknown column %q", s.Path)
		}
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		orderParts = append(orderParts, quoteIdentifier(s.Path)+" "+dir)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(quoteColumns(columns), ", "), quoteIdentifier(tableName))
	if len(clauses) > 0 {
		b.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	if len(orderParts) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(orderParts, ", "))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	fmt.Fprintf(&b, " LIMIT $%d", argIdx)
	args = append(args, limit)

	return b.String(), args, nil
}

// Source is a table.RowSource reading one PostgreSQL table.
type Source struct {
	DB      DBTX
	Table   string
	Columns []string // binding paths, which are the table's column names
	Limit   int
}

// Load runs the query for q and returns one row per record, keyed by column.
func (s *Source) Load(ctx context.Context, q table.Query) ([]table.Row, error) {
	sql, args, err := BuildSelect(s.Table, s.Columns, q, s.Limit)
	if err != nil {
		return nil, fmt.Errorf("build query for %s: %w", s.Table, err)
	}

	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var result []table.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(table.Row, len(s.Columns))
		for i, col := range s.Columns {
			if i < len(values) {
				row[col] = normalize(values[i])
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// normalize converts pgx values into plain Go values the table can compare.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		return val.Time
	case pgtype.Text:
		if !val.Valid {
			return nil
		}
		return val.String
	case [16]byte:
		return uuid.UUID(val).String()
	case time.Time:
		return val
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	default:
		return v
	}
}
