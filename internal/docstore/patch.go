package docstore

type patchOp uint8

const (
	patchKeep patchOp = iota
	patchSet
	patchClear
)

// Patch is an explicit change to one optional field: the zero value leaves
// the field alone, Set replaces it and Clear removes it.
type Patch[T any] struct {
	op    patchOp
	value T
}

func Set[T any](v T) Patch[T] { return Patch[T]{op: patchSet, value: v} }

func Clear[T any]() Patch[T] { return Patch[T]{op: patchClear} }

// SetOrClear sets *v, or clears when v is nil.
func SetOrClear[T any](v *T) Patch[T] {
	if v == nil {
		return Clear[T]()
	}
	return Set(*v)
}

func (p Patch[T]) Changed() bool { return p.op != patchKeep }

func (p Patch[T]) Cleared() bool { return p.op == patchClear }

// Value returns the new value and whether the patch sets one.
func (p Patch[T]) Value() (T, bool) { return p.value, p.op == patchSet }

// Put records the patch in a field map under key; Keep leaves fields untouched.
func (p Patch[T]) Put(fields map[string]any, key string) {
	p.PutWith(fields, key, func(v T) any { return v })
}

// PutWith is Put with a custom encoder for the set value.
func (p Patch[T]) PutWith(fields map[string]any, key string, encode func(T) any) {
	switch p.op {
	case patchSet:
		fields[key] = encode(p.value)
	case patchClear:
		fields[key] = DeleteField
	}
}

// Apply mutates a required field in place.
func (p Patch[T]) Apply(dst *T) {
	switch p.op {
	case patchSet:
		*dst = p.value
	case patchClear:
		var zero T
		*dst = zero
	}
}

// ApplyPtr mutates an optional field in place.
func (p Patch[T]) ApplyPtr(dst **T) {
	switch p.op {
	case patchSet:
		v := p.value
		*dst = &v
	case patchClear:
		*dst = nil
	}
}
