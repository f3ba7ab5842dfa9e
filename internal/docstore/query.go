package docstore

// Op is a filter comparison supported by every backend.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
	// OpIn matches when the field equals any element of a slice value.
	OpIn Op = "in"
)

// MaxInValues is the largest OpIn list a single query may carry.
const MaxInValues = 30

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a filtered, optionally ordered and limited fetch. The
// builder methods return copies so a base query can be reused.
type Query struct {
	Filters   []Filter
	OrderBy   string
	Direction Direction
	Limit     int
}

func NewQuery() Query { return Query{} }

func (q Query) Where(field string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}
