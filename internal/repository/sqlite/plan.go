package sqlite

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"task-server/internal/query"
	"task-server/internal/repository"
)

// colKind drives how raw query-string values are coerced before binding, so
// comparisons against INTEGER and DATETIME columns behave numerically and
// chronologically instead of lexically.
type colKind int

const (
	colText colKind = iota
	colInt
	colBool
	colTime
)

type column struct {
	name string
	kind colKind
}

// tableSchema maps exposed field names to their columns. Fields outside the
// schema are kept as constraints that match nothing, mirroring a document
// store where no record carries the unknown field.
type tableSchema map[string]column

var sqlOps = map[query.Op]string{
	query.OpEq:  "=",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

// compileWhere renders the base filter plus plan conditions as a WHERE
// clause. Base filter fields always win: plan conditions on the same field
// are discarded.
func compileWhere(schema tableSchema, base repository.Filter, conds []query.Condition) (string, []any, error) {
	var clauses []string
	var args []any

	baseFields := make(map[string]struct{}, len(base))
	// deterministic clause order for the base filter
	for field := range base {
		baseFields[field] = struct{}{}
	}
	for _, field := range sortedKeys(base) {
		col, ok := schema[field]
		if !ok {
			return "", nil, fmt.Errorf("unknown scope field %q", field)
		}
		clauses = append(clauses, col.name+" = ?")
		args = append(args, base[field])
	}

	for _, cond := range conds {
		if _, shadowed := baseFields[cond.Field]; shadowed {
			continue
		}
		col, ok := schema[cond.Field]
		if !ok {
			clauses = append(clauses, "1 = 0")
			continue
		}
		op, ok := sqlOps[cond.Op]
		if !ok {
			op = "="
		}
		clauses = append(clauses, col.name+" "+op+" ?")
		args = append(args, coerceValue(col.kind, cond.Value))
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// compileOrder renders the sort keys left to right; rowid breaks ties so the
// ordering is stable across identical sort values. Unknown sort fields are
// skipped.
func compileOrder(schema tableSchema, keys []query.SortKey) string {
	var parts []string
	for _, key := range keys {
		col, ok := schema[key.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		parts = append(parts, col.name+" "+dir)
	}
	parts = append(parts, "rowid ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

func compileLimit(plan query.Plan) (string, []any) {
	return " LIMIT ? OFFSET ?", []any{plan.Limit, plan.Skip}
}

func coerceValue(kind colKind, raw string) any {
	switch kind {
	case colInt:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case colBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			if b {
				return 1
			}
			return 0
		}
	case colTime:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC()
		}
	}
	return raw
}

func sortedKeys(filter repository.Filter) []string {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
