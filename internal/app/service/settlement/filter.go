package settlement

import (
	"fmt"

	"gorm.io/gorm/clause"
)

type FilterOperator string

const (
	FilterOperatorEq    FilterOperator = "eq"
	FilterOperatorGte   FilterOperator = "gte"
	FilterOperatorLte   FilterOperator = "lte"
	FilterOperatorRange FilterOperator = "range"
	FilterOperatorIn    FilterOperator = "in"
)

// filterable lists the settlements columns a Filter may reference.
var filterable = map[string]bool{
	"transaction_id": true,
	"request_id":     true,
	"amount":         true,
	"settled_at":     true,
}

// Filter is one condition on the settlements table, e.g. settled_at in a
// range for a reporting window. Range takes [from, to], both inclusive.
type Filter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Values   []any          `json:"values"`
}

func (f Filter) validate() error {
	if !filterable[f.Field] {
		return fmt.Errorf("cannot filter settlements on %q", f.Field)
	}
	want := 1
	switch f.Operator {
	case FilterOperatorEq, FilterOperatorGte, FilterOperatorLte:
	case FilterOperatorRange:
		want = 2
	case FilterOperatorIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("filter %s in: no values", f.Field)
		}
		return nil
	default:
		return fmt.Errorf("unknown filter operator %q", f.Operator)
	}
	if len(f.Values) != want {
		return fmt.Errorf("filter %s %s: want %d values, got %d", f.Field, f.Operator, want, len(f.Values))
	}
	return nil
}

// Expression turns f into a GORM where clause. f must be valid.
func (f Filter) Expression() clause.Expression {
	switch f.Operator {
	case FilterOperatorGte:
		return clause.Gte{Column: f.Field, Value: f.Values[0]}
	case FilterOperatorLte:
		return clause.Lte{Column: f.Field, Value: f.Values[0]}
	case FilterOperatorRange:
		return clause.And(
			clause.Gte{Column: f.Field, Value: f.Values[0]},
			clause.Lte{Column: f.Field, Value: f.Values[1]},
		)
	case FilterOperatorIn:
		return clause.IN{Column: f.Field, Values: f.Values}
	default:
		return clause.Eq{Column: f.Field, Value: f.Values[0]}
	}
}
