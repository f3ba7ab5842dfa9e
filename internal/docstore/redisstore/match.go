package redisstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/tandm-app/tandm/internal/docstore"
)

func normalizeFilters(filters []docstore.Filter) ([]docstore.Filter, error) {
	out := make([]docstore.Filter, 0, len(filters))
	for _, f := range filters {
		v, err := normalize(f.Value)
		if err != nil {
			return nil, err
		}
		if f.Op == docstore.OpIn {
			list, ok := v.([]any)
			if !ok {
				return nil, docstore.Invalid("filter %q: in requires a list, got %T", f.Field, f.Value)
			}
			if len(list) > docstore.MaxInValues {
				return nil, docstore.Invalid("filter %q: at most %d values allowed", f.Field, docstore.MaxInValues)
			}
		}
		out = append(out, docstore.Filter{Field: f.Field, Op: f.Op, Value: v})
	}
	return out, nil
}

func matchesAll(data map[string]any, filters []docstore.Filter) bool {
	if len(filters) == 0 {
		return true
	}
	if data == nil {
		return false
	}
	for _, f := range filters {
		if !matches(data, f) {
			return false
		}
	}
	return true
}

func matches(data map[string]any, f docstore.Filter) bool {
	v, ok := data[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case docstore.OpEqual:
		return reflect.DeepEqual(v, f.Value)
	case docstore.OpArrayContains:
		list, ok := v.([]any)
		return ok && containsValue(list, f.Value)
	case docstore.OpIn:
		list, _ := f.Value.([]any)
		return containsValue(list, v)
	}
	return false
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

func fieldOf(data map[string]any, field string) any {
	if data == nil {
		return nil
	}
	return data[field]
}

// compareValues orders missing values first, then numbers, timestamps and
// strings by their natural order.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if na, ok := a.(json.Number); ok {
		if nb, ok := b.(json.Number); ok {
			fa, _ := na.Float64()
			fb, _ := nb.Float64()
			return cmpFloat(fa, fb)
		}
	}

	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		ta, errA := time.Parse(time.RFC3339Nano, sa)
		tb, errB := time.Parse(time.RFC3339Nano, sb)
		if errA == nil && errB == nil {
			return ta.Compare(tb)
		}
		return strings.Compare(sa, sb)
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
