// Package query translates request query parameters into an execution plan
// over a generic record collection. The plan is applied in fixed order:
// filter, sort, projection, pagination.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"task-server/internal/apperr"
)

// Parameters with meaning for the plan itself; everything else is a filter.
var reservedParams = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

const (
	DefaultLimit = 100
	defaultSort  = "-createdAt"
)

type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

var bracketOps = map[string]Op{
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
}

// Condition constrains a single field. Unknown fields are passed through
// untouched; schema-aware rejection belongs to the persistence layer.
type Condition struct {
	Field string
	Op    Op
	Value string
}

type SortKey struct {
	Field string
	Desc  bool
}

// Plan is the structured form of a list request.
type Plan struct {
	Filter []Condition
	Sort   []SortKey
	Fields []string
	Skip   int
	Limit  int
}

// Parse builds a Plan from raw query parameters. It fails with a validation
// error when page or limit are present but not positive integers.
func Parse(values url.Values) (Plan, error) {
	plan := Plan{Limit: DefaultLimit}

	page := 1
	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Plan{}, apperr.Validation("page must be a positive integer")
		}
		page = n
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Plan{}, apperr.Validation("limit must be a positive integer")
		}
		plan.Limit = n
	}
	plan.Skip = (page - 1) * plan.Limit

	plan.Sort = parseSort(values.Get("sort"))
	plan.Fields = splitList(values.Get("fields"))
	plan.Filter = parseFilter(values)

	return plan, nil
}

func parseFilter(values url.Values) []Condition {
	// url.Values iterates in map order; keep conditions deterministic.
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var conds []Condition
	for _, key := range keys {
		field, op := splitOperator(key)
		if _, reserved := reservedParams[field]; reserved {
			continue
		}
		if field == "" {
			continue
		}
		conds = append(conds, Condition{Field: field, Op: op, Value: values.Get(key)})
	}
	return conds
}

// splitOperator separates "field[gte]" into field and operator. A plain key
// or an unknown bracket suffix yields an equality condition on the raw key.
func splitOperator(key string) (string, Op) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, OpEq
	}
	op, ok := bracketOps[key[open+1:len(key)-1]]
	if !ok {
		return key, OpEq
	}
	return key[:open], op
}

func parseSort(raw string) []SortKey {
	if strings.TrimSpace(raw) == "" {
		raw = defaultSort
	}
	var keys []SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := SortKey{Field: part}
		if strings.HasPrefix(part, "-") {
			key = SortKey{Field: part[1:], Desc: true}
		}
		if key.Field == "" {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
